package quote

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/abdulmahfud/ongkir-service/internal/expedition"
	"github.com/abdulmahfud/ongkir-service/internal/platform/httpx"
)

// Handler wires the quote HTTP endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers quote routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createBatch)
	r.Get("/recent", h.listRecent)
	r.Get("/{batchID}", h.showBatch)
}

type quoteForm struct {
	OriginRegency       string `json:"origin_regency" validate:"required"`
	OriginDistrict      string `json:"origin_district"`
	DestinationRegency  string `json:"destination_regency"`
	DestinationDistrict string `json:"destination_district" validate:"required"`
	WeightGrams         int    `json:"weight_grams" validate:"required,gt=0"`
	SessionKey          string `json:"session_key"`
}

// fieldLabels carry the storefront's Indonesian wording for the
// combined validation message.
var fieldLabels = map[string]string{
	"OriginRegency":       "asal pengiriman",
	"DestinationDistrict": "tujuan pengiriman",
	"WeightGrams":         "berat paket",
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	var form quoteForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: body harus JSON", httpx.ErrValidation))
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.RespondError(w, validationError(err))
		return
	}

	req := Request{
		Origin:      Locus{Regency: form.OriginRegency, District: form.OriginDistrict},
		Destination: Locus{Regency: form.DestinationRegency, District: form.DestinationDistrict},
		WeightGrams: form.WeightGrams,
		SessionKey:  form.SessionKey,
	}
	view, err := h.service.RequestQuotes(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, envelope(view))
}

func (h *Handler) showBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	view, err := h.service.GetBatch(r.Context(), batchID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, envelope(view))
}

func (h *Handler) listRecent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.Recent(r.Context(), limit)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	httpx.JSON(w, http.StatusOK, envelope(entries))
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMissingLocation):
		httpx.RespondError(w, fmt.Errorf("%w: Data tidak lengkap: asal pengiriman, tujuan pengiriman", httpx.ErrValidation))
	case errors.Is(err, ErrBatchNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: batch", httpx.ErrNotFound))
	case errors.Is(err, expedition.ErrUnauthorized):
		httpx.RespondError(w, fmt.Errorf("%w: backend token rejected", httpx.ErrUnauthorized))
	default:
		h.logger.Error("quote request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	}
	var missing []string
	for _, fieldErr := range verrs {
		if label, ok := fieldLabels[fieldErr.Field()]; ok {
			missing = append(missing, label)
		} else {
			missing = append(missing, fieldErr.Field())
		}
	}
	return fmt.Errorf("%w: Data tidak lengkap: %s", httpx.ErrValidation, strings.Join(missing, ", "))
}

func envelope(data any) map[string]any {
	return map[string]any{
		"status": "success",
		"data":   data,
	}
}
