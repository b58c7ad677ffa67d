package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolfin/core/fee"
)

// Payment handlers

func (api *feeApi) queryPayments(ctx echo.Context) error {
	var filter fee.PaymentFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to fee.PaymentFilter")
	}
	if err := filter.Validate(api.validate); err != nil {
		return err
	}
	filter.WithStudent, filter.WithCategory = true, true

	payments, err := api.svc.QueryPayments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying fee payments")
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (api *feeApi) createPayment(ctx echo.Context) error {
	var data fee.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to fee.NewPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.CreatePayment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating fee payment")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *feeApi) retrievePayment(ctx echo.Context) error {
	p, err := api.svc.GetPayment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting fee payment")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *feeApi) updatePayment(ctx echo.Context) error {
	var data fee.UpdatePayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to fee.UpdatePayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.UpdatePayment(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating fee payment")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *feeApi) destroyPayment(ctx echo.Context) error {
	if err := api.svc.DeletePayment(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting fee payment")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true})
}

func (api *feeApi) sendReminder(ctx echo.Context) error {
	if err := api.svc.SendReminder(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "sending fee reminder")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true})
}
