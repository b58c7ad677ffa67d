package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/schoolfin/core/fee"
	"github.com/trezcool/schoolfin/core/student"
	"github.com/trezcool/schoolfin/core/user"
)

type studentApi struct {
	svc      *student.Service
	feeSvc   *fee.Service
	validate *validator.Validate
}

func registerStudentAPI(
	g *echo.Group,
	auth echo.MiddlewareFunc,
	svc *student.Service,
	feeSvc *fee.Service,
	validate *validator.Validate,
) {
	api := studentApi{
		svc:      svc,
		feeSvc:   feeSvc,
		validate: validate,
	}

	sg := g.Group("/students", auth)
	sg.GET("", api.query)
	sg.POST("", api.create)
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id", api.update, mustExist(svc.GetByID))
	sg.DELETE("/:id", api.destroy, authorize(user.RoleAdmin, "Unauthorized. Only admins can delete students."))
}

// StudentDetail is a Student along with its FeePayments (each including its Category) and their totals.
type StudentDetail struct {
	student.Student
	FeePayments []fee.Payment `json:"feePayments"`
	FeeSummary  fee.Summary   `json:"feeSummary"`
}

// Handlers

func (api *studentApi) query(ctx echo.Context) error {
	var filter student.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to student.QueryFilter")
	}
	if err := filter.Validate(api.validate); err != nil {
		return err
	}

	students, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to student.NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	id := ctx.Param("id")
	var detail StudentDetail

	g, gctx := errgroup.WithContext(ctx.Request().Context())
	g.Go(func() error {
		s, err := api.svc.GetByID(gctx, id)
		if err != nil {
			return errors.Wrap(err, "getting student")
		}
		detail.Student = s
		return nil
	})
	g.Go(func() error {
		payments, err := api.feeSvc.QueryPayments(gctx, fee.PaymentFilter{StudentID: id, WithCategory: true})
		if err != nil {
			return errors.Wrap(err, "querying student payments")
		}
		detail.FeePayments = payments
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	detail.FeeSummary = fee.Summarize(detail.FeePayments)
	return ctx.JSON(http.StatusOK, detail)
}

func (api *studentApi) update(ctx echo.Context) error {
	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to student.UpdateStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true})
}

type SuccessResponse struct {
	Success bool `json:"success"`
}
