package handlers

import (
	"github.com/broxiva/subscriptions/internal/app/service/entitlement"
	"github.com/broxiva/subscriptions/internal/app/service/rollforward"
	"github.com/broxiva/subscriptions/internal/app/service/statistics"
	"github.com/broxiva/subscriptions/internal/app/service/subscription"
	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/pkg/response"
)

// Envelope types below exist for swag, which cannot render generic structs.

// RespOK is a generic envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

type RespPlan struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.SubscriptionPlan  `json:"data"`
}

type RespPlans struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    []models.SubscriptionPlan `json:"data"`
}

type RespSubscribe struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    subscription.SubscribeResult `json:"data"`
}

type RespSubscription struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Subscription      `json:"data"`
}

type RespSubscriptions struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.Subscription    `json:"data"`
}

type RespScanSubscriptions struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    subscription.ScanResult  `json:"data"`
}

type RespSubscriptionLogs struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.SubscriptionLog `json:"data"`
}

type RespInvoice struct {
	Code    response.APIResponseCode   `json:"code"`
	Message string                     `json:"message"`
	Data    models.SubscriptionInvoice `json:"data"`
}

type RespInvoices struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    []models.SubscriptionInvoice `json:"data"`
}

type RespBenefits struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    entitlement.Benefits     `json:"data"`
}

type RespBenefitCheck struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    BenefitCheck             `json:"data"`
}

type RespActionResult struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    entitlement.ActionResult `json:"data"`
}

type RespStatistic struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    statistics.Response      `json:"data"`
}

type RespRollforward struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    rollforward.Result       `json:"data"`
}

type RespHealth struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    HealthStatus             `json:"data"`
}
