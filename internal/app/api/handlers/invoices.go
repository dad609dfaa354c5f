package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/broxiva/subscriptions/internal/app/service/invoice"
	"github.com/broxiva/subscriptions/internal/app/service/payment"
)

type MarkPaidRequest struct {
	ExternalRef *string `json:"external_ref"`
}

// @Summary      List invoices
// @Description  Lists the invoices of the caller's subscriptions, newest first.
// @Tags         Invoices
// @Produce      json
// @Param        subscription_id  query  string  false  "restrict to one subscription"
// @Success      200  {object}  handlers.RespInvoices
// @Router       /api/v1/invoices [get]
func ApiListInvoices(svc *invoice.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var subID *string
		if v, found := c.GetQuery("subscription_id"); found {
			subID = &v
		}
		invoices, err := svc.ListInvoices(c.Request.Context(), currentUser(c), subID)
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, invoices)
	}
}

// @Summary      Mark invoice paid (Admin)
// @Description  Idempotent: an already paid invoice is returned unchanged.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id  path  string  true  "invoice id"
// @Param        request body handlers.MarkPaidRequest false "payment reference"
// @Success      200  {object}  handlers.RespInvoice
// @Router       /api/v1/admin/invoices/{id}/mark_paid [post]
func ApiMarkInvoicePaid(svc *invoice.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req MarkPaidRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err.Error())
				return
			}
		}
		inv, err := svc.MarkPaid(c.Request.Context(), c.Param("id"), req.ExternalRef)
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, inv)
	}
}

// @Summary      Payment confirmation webhook
// @Description  Called by the payment side with the X-Webhook-Secret header once an invoice is settled.
// @Tags         Payments
// @Accept       json
// @Produce      json
// @Param        request body payment.ConfirmRequest true "confirmation"
// @Success      200  {object}  handlers.RespInvoice
// @Router       /api/v1/payments/confirm [post]
func ApiConfirmPayment(svc *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.ConfirmRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		inv, err := svc.Confirm(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, inv)
	}
}

func RegisterInvoiceRoutes(r gin.IRouter, svc *invoice.Service) {
	r.GET("/invoices", ApiListInvoices(svc))
}

func RegisterPaymentRoutes(r gin.IRouter, svc *payment.Service) {
	r.POST("/confirm", ApiConfirmPayment(svc))
}
