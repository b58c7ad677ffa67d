package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolfin/core/fee"
	"github.com/trezcool/schoolfin/core/user"
)

type feeApi struct {
	svc      *fee.Service
	validate *validator.Validate
}

func registerFeeAPI(g *echo.Group, auth echo.MiddlewareFunc, svc *fee.Service, validate *validator.Validate) {
	api := feeApi{
		svc:      svc,
		validate: validate,
	}
	adminOnly := func(action string) echo.MiddlewareFunc {
		return authorize(user.RoleAdmin, "Unauthorized. Only admins can "+action+".")
	}

	fg := g.Group("/fees", auth)

	cg := fg.Group("/categories")
	cg.GET("", api.queryCategories)
	cg.POST("", api.createCategory, adminOnly("create fee categories"))
	cg.GET("/:id", api.retrieveCategory)
	cg.PUT("/:id", api.updateCategory, adminOnly("update fee categories"), mustExist(svc.GetCategory))
	cg.DELETE("/:id", api.destroyCategory, adminOnly("delete fee categories"))

	pg := fg.Group("/payments")
	pg.GET("", api.queryPayments)
	pg.POST("", api.createPayment, adminOnly("record fee payments"))
	pg.GET("/:id", api.retrievePayment)
	pg.PUT("/:id", api.updatePayment, adminOnly("update fee payments"), mustExist(svc.GetPayment))
	pg.DELETE("/:id", api.destroyPayment, adminOnly("delete fee payments"))
	pg.POST("/:id/reminder", api.sendReminder, adminOnly("send fee reminders"))
}

// Category handlers

func (api *feeApi) queryCategories(ctx echo.Context) error {
	var filter fee.CategoryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to fee.CategoryFilter")
	}
	if err := filter.Validate(api.validate); err != nil {
		return err
	}

	categories, err := api.svc.QueryCategories(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying fee categories")
	}
	return ctx.JSON(http.StatusOK, categories)
}

func (api *feeApi) createCategory(ctx echo.Context) error {
	var data fee.NewCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to fee.NewCategory")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.CreateCategory(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating fee category")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *feeApi) retrieveCategory(ctx echo.Context) error {
	detail, err := api.svc.GetCategoryDetail(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting fee category")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *feeApi) updateCategory(ctx echo.Context) error {
	var data fee.UpdateCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to fee.UpdateCategory")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.UpdateCategory(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating fee category")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *feeApi) destroyCategory(ctx echo.Context) error {
	if err := api.svc.DeleteCategory(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting fee category")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true})
}
