package main

import (
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/schoolfin/core"
	"github.com/trezcool/schoolfin/core/fee"
	"github.com/trezcool/schoolfin/core/student"
	"github.com/trezcool/schoolfin/core/user"
	emailsvc "github.com/trezcool/schoolfin/services/email"
	logsvc "github.com/trezcool/schoolfin/services/logger"
	"github.com/trezcool/schoolfin/storage/database"
	sqlxrepos "github.com/trezcool/schoolfin/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up services
	studentSvc := student.NewService(sqlxrepos.NewStudentRepository(db))
	mailSvc := emailsvc.NewConsoleService(conf, logger)

	// start CLI
	cli := commandLine{
		db:       db.DB,
		usrSvc:   user.NewService(sqlxrepos.NewUserRepository(db)),
		feeSvc:   fee.NewService(sqlxrepos.NewFeeRepository(db), studentSvc, mailSvc),
		validate: validate,
	}
	err = cli.run(os.Args)
	if cErr := db.Close(); cErr != nil {
		logger.Error("closing database", cErr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		os.Exit(1)
	}
}
