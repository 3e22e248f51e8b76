package payrollhandler

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bursar/internal/domain/audit"
	"bursar/internal/domain/auth"
	"bursar/internal/domain/payroll"
	"bursar/internal/platform/jobs"
	"bursar/internal/requestctx"
	"bursar/internal/transport/http/api"
	"bursar/internal/transport/http/middleware"
	"bursar/internal/transport/http/shared"
)

// JobRunner executes payroll runs through the job queue. *jobs.Service
// implements it; a nil runner executes runs inline.
type JobRunner interface {
	Enqueue(ctx context.Context, jobType string, run func(context.Context) (any, error)) (string, error)
	RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error)
}

type Handler struct {
	Service *payroll.Service
	Jobs    JobRunner
	Audit   audit.Log
	Perms   middleware.PermissionStore
	Log     zerolog.Logger
}

func NewHandler(service *payroll.Service, runner JobRunner, auditLog audit.Log, perms middleware.PermissionStore, log zerolog.Logger) *Handler {
	return &Handler{Service: service, Jobs: runner, Audit: auditLog, Perms: perms, Log: log}
}

type quotePayload struct {
	Gross   *decimal.Decimal `json:"gross" validate:"required,money"`
	Rounded bool             `json:"rounded"`
}

type quoteResponse struct {
	Gross decimal.Decimal `json:"gross"`
	payroll.DeductionResult
}

type staffPayload struct {
	StaffNo     string           `json:"staffNo" validate:"required,notblank,max=32"`
	FirstName   string           `json:"firstName" validate:"required,notblank,max=100"`
	LastName    string           `json:"lastName" validate:"required,notblank,max=100"`
	Email       string           `json:"email" validate:"omitempty,email"`
	Role        string           `json:"role" validate:"omitempty,max=64"`
	BaseSalary  *decimal.Decimal `json:"baseSalary" validate:"required,money_gte0"`
	BankAccount string           `json:"bankAccount" validate:"omitempty,max=64"`
	Status      string           `json:"status" validate:"omitempty,oneof=active inactive"`
}

type allowancePayload struct {
	Name   string           `json:"name" validate:"required,notblank,max=100"`
	Amount *decimal.Decimal `json:"amount" validate:"required,money"`
}

type periodPayload struct {
	Name      string `json:"name" validate:"omitempty,max=100"`
	StartDate string `json:"startDate" validate:"required"`
	EndDate   string `json:"endDate" validate:"required"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payroll", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Post("/deductions/calculate", h.handleCalculate)

		r.With(middleware.RequirePermission(auth.PermStaffRead, h.Perms)).Get("/staff", h.handleListStaff)
		r.With(middleware.RequirePermission(auth.PermStaffWrite, h.Perms)).Post("/staff", h.handleCreateStaff)
		r.With(middleware.RequirePermission(auth.PermStaffWrite, h.Perms)).Post("/staff/{staffID}/allowances", h.handleAddAllowance)

		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/periods", h.handleListPeriods)
		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Post("/periods", h.handleCreatePeriod)
		r.With(middleware.RequirePermission(auth.PermPayrollRun, h.Perms)).Post("/periods/{periodID}/run", h.handleRunPayroll)
		r.With(middleware.RequirePermission(auth.PermPayrollFinalize, h.Perms)).Post("/periods/{periodID}/finalize", h.handleFinalizePayroll)
		r.With(middleware.RequirePermission(auth.PermPayrollFinalize, h.Perms)).Post("/periods/{periodID}/reopen", h.handleReopenPeriod)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/periods/{periodID}/results", h.handleListResults)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/periods/{periodID}/summary", h.handlePeriodSummary)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/periods/{periodID}/payslips", h.handleListPayslips)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/periods/{periodID}/export/register", h.handleExportRegister)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/payslips/{payslipID}/download", h.handleDownloadPayslip)
		r.With(middleware.RequirePermission(auth.PermAuditRead, h.Perms)).Get("/audit", h.handleListAudit)
	})
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload quotePayload
	if !shared.DecodeAndValidate(w, r, requestID, &payload) {
		return
	}

	result, err := h.Service.Quote(*payload.Gross)
	if err != nil {
		h.fail(w, r, err, "calculate_failed", "failed to calculate deductions")
		return
	}
	if payload.Rounded {
		result = result.Rounded(*payload.Gross)
	}
	api.Success(w, quoteResponse{Gross: *payload.Gross, DeductionResult: result}, requestID)
}

func (h *Handler) handleListStaff(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	status := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && status != payroll.StaffStatusActive && status != payroll.StaffStatusInactive {
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "status", Reason: "must be one of active inactive"}})
		return
	}
	page := shared.ParsePagination(r, 50, 200)
	staff, total, err := h.Service.ListStaff(r.Context(), status, page.Limit, page.Offset)
	if err != nil {
		h.fail(w, r, err, "staff_list_failed", "failed to list staff")
		return
	}
	if staff == nil {
		staff = []payroll.Staff{}
	}
	api.Paged(w, staff, page.Meta(total), requestID)
}

func (h *Handler) handleCreateStaff(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload staffPayload
	if !shared.DecodeAndValidate(w, r, requestID, &payload) {
		return
	}

	id, err := h.Service.CreateStaff(r.Context(), payroll.Staff{
		StaffNo:     payload.StaffNo,
		FirstName:   strings.TrimSpace(payload.FirstName),
		LastName:    strings.TrimSpace(payload.LastName),
		Email:       payload.Email,
		Role:        payload.Role,
		BaseSalary:  *payload.BaseSalary,
		BankAccount: strings.TrimSpace(payload.BankAccount),
		Status:      payload.Status,
	})
	if err != nil {
		h.fail(w, r, err, "staff_create_failed", "failed to create staff member")
		return
	}
	h.record(r, audit.ActionStaffCreate, "staff", id, map[string]string{"staffNo": payload.StaffNo})
	api.Created(w, map[string]string{"id": id}, requestID)
}

func (h *Handler) handleAddAllowance(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload allowancePayload
	if !shared.DecodeAndValidate(w, r, requestID, &payload) {
		return
	}

	staffID := chi.URLParam(r, "staffID")
	id, err := h.Service.AddAllowance(r.Context(), staffID, payload.Name, *payload.Amount)
	if err != nil {
		h.fail(w, r, err, "allowance_create_failed", "failed to add allowance")
		return
	}
	h.record(r, audit.ActionAllowanceCreate, "staff", staffID, map[string]string{"allowanceId": id, "name": payload.Name, "amount": payload.Amount.String()})
	api.Created(w, map[string]string{"id": id}, requestID)
}

func (h *Handler) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 24, 120)
	periods, total, err := h.Service.ListPeriods(r.Context(), page.Limit, page.Offset)
	if err != nil {
		h.fail(w, r, err, "payroll_periods_failed", "failed to list periods")
		return
	}
	if periods == nil {
		periods = []payroll.Period{}
	}
	api.Paged(w, periods, page.Meta(total), requestID)
}

func (h *Handler) handleCreatePeriod(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload periodPayload
	if !shared.DecodeAndValidate(w, r, requestID, &payload) {
		return
	}

	v := shared.NewValidator()
	start := v.Date("startDate", payload.StartDate)
	end := v.Date("endDate", payload.EndDate)
	v.DateOrder("startDate", start, "endDate", end)
	if v.Reject(w, requestID) {
		return
	}

	id, err := h.Service.CreatePeriod(r.Context(), payload.Name, start, end)
	if err != nil {
		h.fail(w, r, err, "payroll_period_create_failed", "failed to create period")
		return
	}
	h.record(r, audit.ActionPeriodCreate, "payroll_period", id, payload)
	api.Created(w, map[string]string{"id": id}, requestID)
}

// handleRunPayroll runs inline by default. With ?async=true the run is
// queued and the response carries the job id.
func (h *Handler) handleRunPayroll(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	periodID := chi.URLParam(r, "periodID")

	run := func(ctx context.Context) (any, error) {
		return h.Service.RunPeriod(ctx, periodID)
	}

	if h.Jobs != nil && r.URL.Query().Get("async") == "true" {
		period, err := h.Service.Period(r.Context(), periodID)
		if err == nil && period.Status == payroll.PeriodStatusFinalized {
			err = payroll.ErrPeriodFinalized
		}
		if err != nil {
			h.fail(w, r, err, "payroll_run_failed", "failed to run payroll")
			return
		}
		jobID, err := h.Jobs.Enqueue(context.WithoutCancel(r.Context()), jobs.JobPayrollRun, run)
		if err != nil {
			if errors.Is(err, jobs.ErrQueueFull) {
				api.Fail(w, http.StatusServiceUnavailable, "queue_full", "payroll run queue is full", requestID)
				return
			}
			if errors.Is(err, jobs.ErrStopped) {
				api.Fail(w, http.StatusServiceUnavailable, "shutting_down", "server is shutting down", requestID)
				return
			}
			h.fail(w, r, err, "payroll_run_failed", "failed to queue payroll run")
			return
		}
		h.record(r, audit.ActionPayrollRun, "payroll_period", periodID, map[string]string{"jobId": jobID})
		api.Accepted(w, map[string]string{"jobId": jobID, "periodId": periodID}, requestID)
		return
	}

	var (
		out any
		err error
	)
	if h.Jobs != nil {
		out, err = h.Jobs.RunNow(r.Context(), jobs.JobPayrollRun, run)
	} else {
		out, err = run(r.Context())
	}
	if err != nil {
		h.fail(w, r, err, "payroll_run_failed", "failed to run payroll")
		return
	}
	h.record(r, audit.ActionPayrollRun, "payroll_period", periodID, out)
	api.Success(w, out, requestID)
}

func (h *Handler) handleFinalizePayroll(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	periodID := chi.URLParam(r, "periodID")
	payslips, err := h.Service.Finalize(r.Context(), periodID)
	if err != nil {
		h.fail(w, r, err, "payroll_finalize_failed", "failed to finalize payroll")
		return
	}
	h.record(r, audit.ActionPayrollFinalize, "payroll_period", periodID, map[string]int{"payslips": len(payslips)})
	api.Success(w, map[string]any{"status": payroll.PeriodStatusFinalized, "payslips": len(payslips)}, requestID)
}

func (h *Handler) handleReopenPeriod(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	periodID := chi.URLParam(r, "periodID")
	if err := h.Service.Reopen(r.Context(), periodID); err != nil {
		h.fail(w, r, err, "payroll_reopen_failed", "failed to reopen period")
		return
	}
	h.record(r, audit.ActionPayrollReopen, "payroll_period", periodID, nil)
	api.Success(w, map[string]string{"status": payroll.PeriodStatusDraft}, requestID)
}

func (h *Handler) handleListResults(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	results, err := h.Service.Results(r.Context(), chi.URLParam(r, "periodID"))
	if err != nil {
		h.fail(w, r, err, "payroll_results_failed", "failed to list results")
		return
	}
	if results == nil {
		results = []payroll.Result{}
	}
	api.Success(w, results, requestID)
}

func (h *Handler) handlePeriodSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.Summary(r.Context(), chi.URLParam(r, "periodID"))
	if err != nil {
		h.fail(w, r, err, "payroll_summary_failed", "failed to load summary")
		return
	}
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListPayslips(w http.ResponseWriter, r *http.Request) {
	payslips, err := h.Service.Payslips(r.Context(), chi.URLParam(r, "periodID"))
	if err != nil {
		h.fail(w, r, err, "payslips_failed", "failed to list payslips")
		return
	}
	if payslips == nil {
		payslips = []payroll.Payslip{}
	}
	api.Success(w, payslips, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleExportRegister(w http.ResponseWriter, r *http.Request) {
	periodID := chi.URLParam(r, "periodID")
	results, err := h.Service.Results(r.Context(), periodID)
	if err != nil {
		h.fail(w, r, err, "export_failed", "failed to export register")
		return
	}

	log := requestctx.Logger(r.Context(), h.Log)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=payroll-register-"+periodID+".csv")
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"staff_id", "staff_name", "gross", "income_tax", "health_levy", "pension", "total_deductions", "net", "currency", "warnings"}); err != nil {
		log.Warn().Err(err).Msg("export register header write failed")
	}
	for _, result := range results {
		shown := result.Rounded(result.Gross)
		row := []string{
			result.StaffID,
			result.StaffName,
			result.Gross.StringFixed(2),
			shown.IncomeTax.StringFixed(2),
			shown.HealthLevy.StringFixed(2),
			shown.Pension.StringFixed(2),
			shown.TotalDeductions.StringFixed(2),
			shown.NetSalary.StringFixed(2),
			result.Currency,
			strings.Join(result.Warnings, ";"),
		}
		if err := writer.Write(row); err != nil {
			log.Warn().Err(err).Msg("export register row write failed")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		log.Warn().Err(err).Msg("export register flush failed")
	}
}

func (h *Handler) handleDownloadPayslip(w http.ResponseWriter, r *http.Request) {
	payslip, err := h.Service.Payslip(r.Context(), chi.URLParam(r, "payslipID"))
	if err != nil {
		h.fail(w, r, err, "payslip_failed", "failed to load payslip")
		return
	}
	if payslip.FileURL == "" {
		api.Fail(w, http.StatusNotFound, "payslip_missing", "payslip not available", middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=payslip-"+payslip.ID+".pdf")
	http.ServeFile(w, r, payslip.FileURL)
}

func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	if h.Audit == nil {
		api.Paged(w, []audit.Event{}, api.Meta{}, requestID)
		return
	}
	query := r.URL.Query()
	page := shared.ParsePagination(r, 50, 200)
	events, total, err := h.Audit.List(r.Context(), audit.Filter{
		Action:     query.Get("action"),
		EntityType: query.Get("entityType"),
		EntityID:   query.Get("entityId"),
		ActorID:    query.Get("actorId"),
	}, page.Limit, page.Offset)
	if err != nil {
		h.fail(w, r, err, "audit_list_failed", "failed to list audit events")
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	api.Paged(w, events, page.Meta(total), requestID)
}

// record writes an audit event for a completed mutation. Failures are logged
// and never fail the request.
func (h *Handler) record(r *http.Request, action, entityType, entityID string, after any) {
	if h.Audit == nil {
		return
	}
	user, _ := middleware.GetUser(r.Context())
	err := h.Audit.Record(r.Context(), audit.Entry{
		ActorID:    user.UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         middleware.ClientIP(r),
		After:      after,
	})
	if err != nil {
		log := requestctx.Logger(r.Context(), h.Log)
		log.Warn().Err(err).Str("action", action).Msg("audit record failed")
	}
}

// fail maps domain errors to envelope responses. Anything unrecognised is
// logged and reported as a 500 with the given code.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, code, message string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, payroll.ErrInvalidArgument):
		api.Fail(w, http.StatusBadRequest, "invalid_argument", err.Error(), requestID)
	case errors.Is(err, payroll.ErrPeriodNotFound),
		errors.Is(err, payroll.ErrStaffNotFound),
		errors.Is(err, payroll.ErrPayslipNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	case errors.Is(err, payroll.ErrPeriodFinalized),
		errors.Is(err, payroll.ErrFinalizeInvalidState),
		errors.Is(err, payroll.ErrFinalizeNoResults),
		errors.Is(err, payroll.ErrReopenInvalidState):
		api.Fail(w, http.StatusConflict, "invalid_state", err.Error(), requestID)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		api.Fail(w, http.StatusServiceUnavailable, "timeout", "request cancelled", requestID)
	default:
		log := requestctx.Logger(r.Context(), h.Log)
		log.Error().Err(err).Str("code", code).Msg(message)
		api.Fail(w, http.StatusInternalServerError, code, message, requestID)
	}
}
