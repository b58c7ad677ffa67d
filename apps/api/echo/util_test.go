package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	. "github.com/trezcool/schoolfin/apps/api/echo"
	"github.com/trezcool/schoolfin/core"
	"github.com/trezcool/schoolfin/core/fee"
	"github.com/trezcool/schoolfin/core/student"
	"github.com/trezcool/schoolfin/core/user"
	emailsvc "github.com/trezcool/schoolfin/services/email"
	inmemdb "github.com/trezcool/schoolfin/storage/database/inmem"
	"github.com/trezcool/schoolfin/testutil"
)

var (
	conf       *core.Config
	usrRepo    user.Repository
	studentSvc *student.Service
	feeSvc     *fee.Service
	mailSvc    *emailsvc.ConsoleServiceMock

	errUnauthorized = httpErr{Error: "Unauthorized"}
)

func setup(t *testing.T) *Server {
	t.Helper()
	conf = core.NewTestConfig()

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)

	// set up services
	mailSvc = emailsvc.NewConsoleServiceMock(conf, testutil.NopLogger{})
	studentSvc = student.NewService(inmemdb.NewStudentRepository(db))
	feeSvc = fee.NewService(inmemdb.NewFeeRepository(db), studentSvc, mailSvc)
	validate, translator := testutil.NewValidator()

	// set up server
	srv := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     testutil.NopLogger{},
		StudentSvc: studentSvc,
		FeeSvc:     feeSvc,
		UserSvc:    user.NewService(usrRepo),
		Validate:   validate,
		Translator: translator,
	})
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

// setupUsers creates an admin & a staff user and returns their tokens.
func setupUsers(t *testing.T) (adminToken, staffToken string) {
	t.Helper()
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "password123", user.RoleAdmin, true)
	staff := testutil.CreateUser(t, usrRepo, "Staff", "staff@test.cd", "password123", user.RoleStaff, true)
	return getToken(t, admin), getToken(t, staff)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// serve runs tt against srv and returns the recorded response.
func serve(srv *Server, tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	srv.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(GetUserClaims(usr, conf), conf)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func marshallList(t *testing.T, objs ...interface{}) []byte {
	t.Helper()
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marshallList() failed: %v", err)
	}
	return data
}

// unmarshall decodes the JSON body of rec into a new T.
func unmarshall[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("unmarshall() failed: %v; body %s", err, rec.Body.String())
	}
	return v
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, srv *Server, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, serve(srv, tt))
		})
	}
}
