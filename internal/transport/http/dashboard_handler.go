package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"canceldash/internal/dataprocessing"
	apierrors "canceldash/internal/errors"
	"canceldash/internal/services"
	"canceldash/pkg/contracts/domain"
)

// DashboardHandler serves the cancellation dashboard API with RFC 7807
// error responses.
type DashboardHandler struct {
	service      *services.DashboardService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validate     *validator.Validate
}

// NewDashboardHandler creates a dashboard handler.
func NewDashboardHandler(service *services.DashboardService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
		validate:     validator.New(),
	}
}

// Routes returns the dashboard routes.
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/records", h.GetRecords)
	r.Get("/summary", h.GetSummary)
	r.Get("/summary/{table}", h.GetSummaryTable)
	r.Get("/filters", h.GetFilterOptions)
	r.Get("/download/records", h.DownloadRecords)
	r.Post("/reload", h.PostReload)

	return r
}

// filterQuery is the decoded query string of every dashboard endpoint.
// Dates are calendar days; an out-of-order range is legal and yields an
// empty subset rather than an error.
type filterQuery struct {
	From   string `validate:"omitempty,datetime=2006-01-02"`
	To     string `validate:"omitempty,datetime=2006-01-02"`
	Reason string `validate:"omitempty,max=200"`
	Staff  string `validate:"omitempty,max=200"`
	Period string `validate:"omitempty,max=50"`
}

func (h *DashboardHandler) parseFilter(values url.Values) (dataprocessing.FilterSpec, error) {
	q := filterQuery{
		From:   values.Get("from"),
		To:     values.Get("to"),
		Reason: values.Get("reason"),
		Staff:  values.Get("staff"),
		Period: values.Get("period"),
	}

	if err := h.validate.Struct(q); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			field := verrs[0].Field()
			return dataprocessing.FilterSpec{}, apierrors.ErrValidation(field,
				fmt.Sprintf("invalid value for %s", field))
		}
		return dataprocessing.FilterSpec{}, apierrors.ErrInvalidRequest
	}

	spec := dataprocessing.FilterSpec{
		Reason: q.Reason,
		Staff:  q.Staff,
		Period: q.Period,
	}

	if q.From != "" {
		d, _ := time.Parse("2006-01-02", q.From)
		spec.From = &d
	}
	if q.To != "" {
		d, _ := time.Parse("2006-01-02", q.To)
		spec.To = &d
	}

	if spec.Period != "" && spec.Period != dataprocessing.AllSentinel {
		if !domain.ValidPeriod(spec.Period) {
			return dataprocessing.FilterSpec{}, apierrors.ErrValidation("period",
				fmt.Sprintf("unknown time period %q", spec.Period))
		}
	}

	return spec, nil
}

// GetRecords returns the filtered records.
func (h *DashboardHandler) GetRecords(w http.ResponseWriter, r *http.Request) {
	spec, err := h.parseFilter(r.URL.Query())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	records, err := h.service.Records(r.Context(), spec)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"count":   len(records),
		"records": records,
	})
}

// GetSummary returns every summary table for the filtered subset.
func (h *DashboardHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	spec, err := h.parseFilter(r.URL.Query())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	summary, err := h.service.Summary(r.Context(), spec)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, summary)
}

// GetSummaryTable returns a single summary table by name.
func (h *DashboardHandler) GetSummaryTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	spec, err := h.parseFilter(r.URL.Query())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	result, err := h.service.TableByName(r.Context(), table, spec)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"table": table,
		"data":  result,
	})
}

// GetFilterOptions returns the distinct filter values in the dataset.
func (h *DashboardHandler) GetFilterOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.FilterOptions(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, opts)
}

// DownloadRecords streams records as a CSV attachment. By default the
// current filter applies; scope=full exports the whole dataset.
func (h *DashboardHandler) DownloadRecords(w http.ResponseWriter, r *http.Request) {
	spec, err := h.parseFilter(r.URL.Query())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	switch scope := r.URL.Query().Get("scope"); scope {
	case "", "filtered":
	case "full":
		spec = dataprocessing.FilterSpec{}
	default:
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("scope",
			fmt.Sprintf("scope must be filtered or full, got %q", scope)))
		return
	}

	filename := fmt.Sprintf("cancellations_%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	if err := h.service.ExportRecordsCSV(r.Context(), spec, w); err != nil {
		// Headers are already written, all we can do is log.
		h.logger.ErrorContext(r.Context(), "csv export failed",
			slog.String("error", err.Error()))
	}
}

// PostReload forces a dataset re-read, for operators who replaced the
// source file and do not want to wait for the watcher.
func (h *DashboardHandler) PostReload(w http.ResponseWriter, r *http.Request) {
	swapped, err := h.service.Reload(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"reloaded": swapped,
	})
}
