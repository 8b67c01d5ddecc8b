package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"invoice-reconciliation-service/internal/models"
	"invoice-reconciliation-service/pkg/errors"
	"invoice-reconciliation-service/pkg/logger"
)

const successMessage = "Validation completed successfully."

func (s *Server) validateInvoice(c *gin.Context) {
	var inv models.Invoice
	if err := c.ShouldBindJSON(&inv); err != nil {
		respondError(c, errors.ClientInputError(errors.CodeMalformedPayload, describeBindError(err), err))
		return
	}

	if inv.Number() == "" {
		respondError(c, errors.ClientInputError(errors.CodeMissingInvoiceNumber, "invoiceNumber", nil))
		return
	}

	log := requestLogger(c).WithField("invoice_number", inv.Number())
	log.Debug("Validation request received")

	result, err := s.reconciler.Reconcile(c.Request.Context(), &inv)
	if err != nil {
		log.WithError(err).Error("Validation failed")
		respondError(c, err)
		return
	}

	log.WithFields(logger.Fields{
		"invoice_exists": result.InvoiceExists,
		"errors":         len(result.Errors),
		"warnings":       len(result.Warnings),
		"narrative":      result.Narrative != nil,
	}).Info("Validation completed")

	respond(c, http.StatusOK, successMessage, result)
}

func (s *Server) validateByNumber(c *gin.Context) {
	number := c.Param("invoice_number")
	log := requestLogger(c).WithField("invoice_number", number)

	result, err := s.reconciler.ReconcileByNumber(c.Request.Context(), number)
	if err != nil {
		log.WithError(err).Error("Validation by number failed")
		respondError(c, err)
		return
	}

	log.WithField("invoice_exists", result.InvoiceExists).Info("Validation by number completed")
	respond(c, http.StatusOK, successMessage, result)
}

// HealthStatus is the body of the health endpoint
type HealthStatus struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	status := HealthStatus{Status: "healthy", Service: serviceName}
	healthy := true

	if len(s.checks) > 0 {
		status.Checks = make(map[string]string, len(s.checks))
		for name, check := range s.checks {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			err := check(ctx)
			cancel()

			if err != nil {
				healthy = false
				status.Checks[name] = err.Error()
				continue
			}
			status.Checks[name] = "ok"
		}
	}

	if !healthy {
		status.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, Response{
			Success: false,
			Data:    status,
			Error:   &ErrorInfo{Code: "unhealthy", Message: "one or more dependencies are unavailable"},
			Meta:    newMeta(c),
		})
		return
	}
	respond(c, http.StatusOK, "", status)
}

func (s *Server) index(c *gin.Context) {
	respond(c, http.StatusOK, serviceName, gin.H{
		"endpoints": gin.H{
			"health":             "/api/v1/health",
			"validate":           "/api/v1/validate/",
			"validate_by_number": "/api/v1/validate/{invoice_number}",
			"metrics":            "/metrics",
		},
	})
}
