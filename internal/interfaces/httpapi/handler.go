package httpapi

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"

	"github.com/icctweb/team-registration/internal/domain/registration"
	"github.com/icctweb/team-registration/internal/usecase"
)

// maxMultipartMemory bounds how much of a submission is buffered in
// memory before spilling to temp files.
const maxMultipartMemory = 32 << 20

// maxDocumentBytes caps a single uploaded document.
const maxDocumentBytes = 10 << 20

type Handler struct {
	registrationService *usecase.RegistrationService
	approvalService     *usecase.ApprovalService
	allocator           *usecase.SequenceAllocator
	logger              *slog.Logger
	validator           *validator.Validate
}

func NewHandler(
	registrationService *usecase.RegistrationService,
	approvalService *usecase.ApprovalService,
	allocator *usecase.SequenceAllocator,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		registrationService: registrationService,
		approvalService:     approvalService,
		allocator:           allocator,
		logger:              logger,
		validator:           validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitPlayerRequest struct {
	Name string `json:"name" validate:"required"`
	Role string `json:"role"`
}

type submitRegistrationRequest struct {
	TeamName         string                `validate:"required"`
	ChurchName       string                `validate:"required"`
	CaptainName      string                `validate:"required"`
	CaptainPhone     string                `validate:"required"`
	CaptainEmail     string                `validate:"required,email"`
	ViceCaptainName  string                `validate:"required"`
	ViceCaptainPhone string                `validate:"required"`
	ViceCaptainEmail string                `validate:"omitempty,email"`
	Players          []submitPlayerRequest `validate:"required,dive"`
}

type registrationResponse struct {
	TeamID      string `json:"team_id"`
	PlayerCount int    `json:"player_count"`
	EmailSent   bool   `json:"email_sent"`
	Replayed    bool   `json:"replayed"`
}

// SubmitRegistration accepts a multipart form: scalar team fields, a
// "players" part holding a JSON array of {name, role}, and the document
// parts (payment_receipt, pastor_letter, group_photo, and per player
// player_NN_aadhar_card / player_NN_subscription_form keyed by 1-based
// roster slot).
func (h *Handler) SubmitRegistration(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SubmitRegistration")
	defer span.End()

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey == "" {
		writeError(ctx, w, fmt.Errorf("%w: Idempotency-Key header is required", usecase.ErrInvalidInput))
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: parse multipart form: %v", usecase.ErrInvalidInput, err))
		return
	}

	req := submitRegistrationRequest{
		TeamName:         r.FormValue("team_name"),
		ChurchName:       r.FormValue("church_name"),
		CaptainName:      r.FormValue("captain_name"),
		CaptainPhone:     r.FormValue("captain_phone"),
		CaptainEmail:     r.FormValue("captain_email"),
		ViceCaptainName:  r.FormValue("vice_captain_name"),
		ViceCaptainPhone: r.FormValue("vice_captain_phone"),
		ViceCaptainEmail: r.FormValue("vice_captain_email"),
	}
	if err := sonic.UnmarshalString(r.FormValue("players"), &req.Players); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: decode players: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validator.StructCtx(ctx, req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: %v", usecase.ErrInvalidInput, err))
		return
	}

	input := usecase.SubmitRegistrationInput{
		IdempotencyKey: idempotencyKey,
		TeamName:       req.TeamName,
		ChurchName:     req.ChurchName,
		Captain: registration.Contact{
			Name:  req.CaptainName,
			Phone: req.CaptainPhone,
			Email: req.CaptainEmail,
		},
		ViceCaptain: registration.Contact{
			Name:  req.ViceCaptainName,
			Phone: req.ViceCaptainPhone,
			Email: req.ViceCaptainEmail,
		},
	}

	var err error
	if input.PaymentReceipt, err = readFilePart(r, registration.FieldPaymentReceipt); err != nil {
		writeError(ctx, w, err)
		return
	}
	if input.PastorLetter, err = readFilePart(r, registration.FieldPastorLetter); err != nil {
		writeError(ctx, w, err)
		return
	}
	if input.GroupPhoto, err = readFilePart(r, registration.FieldGroupPhoto); err != nil {
		writeError(ctx, w, err)
		return
	}

	for i, p := range req.Players {
		slot := i + 1
		player := usecase.PlayerInput{Name: p.Name, Role: p.Role}
		if player.AadharCard, err = readFilePart(r, fmt.Sprintf("player_%02d_%s", slot, registration.FieldAadharCard)); err != nil {
			writeError(ctx, w, err)
			return
		}
		if player.SubscriptionForm, err = readFilePart(r, fmt.Sprintf("player_%02d_%s", slot, registration.FieldSubscriptionForm)); err != nil {
			writeError(ctx, w, err)
			return
		}
		input.Players = append(input.Players, player)
	}

	result, err := h.registrationService.Submit(ctx, input)
	if err != nil {
		h.logger.ErrorContext(ctx, "submit registration failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeSuccess(ctx, w, status, registrationResponse{
		TeamID:      result.PublicTeamID,
		PlayerCount: result.PlayerCount,
		EmailSent:   result.EmailSent,
		Replayed:    result.Replayed,
	})
}

type confirmResponse struct {
	TeamID    string `json:"team_id"`
	Outcome   string `json:"outcome"`
	EmailSent bool   `json:"email_sent"`
}

func (h *Handler) ConfirmRegistration(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ConfirmRegistration")
	defer span.End()

	teamID := r.PathValue("teamID")
	result, err := h.approvalService.Confirm(ctx, teamID)
	if err != nil {
		h.logger.ErrorContext(ctx, "confirm registration failed", "team_id", teamID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, confirmResponse{
		TeamID:    teamID,
		Outcome:   string(result.Outcome),
		EmailSent: result.EmailSent,
	})
}

type rejectResponse struct {
	TeamID string `json:"team_id"`
	Status string `json:"status"`
}

func (h *Handler) RejectRegistration(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RejectRegistration")
	defer span.End()

	teamID := r.PathValue("teamID")
	if err := h.approvalService.Reject(ctx, teamID); err != nil {
		h.logger.ErrorContext(ctx, "reject registration failed", "team_id", teamID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, rejectResponse{
		TeamID: teamID,
		Status: string(registration.StatusRejected),
	})
}

type resyncSequenceRequest struct {
	ObservedMax int64 `json:"observed_max" validate:"gte=0"`
}

type resyncSequenceResponse struct {
	Name        string `json:"name"`
	ObservedMax int64  `json:"observed_max"`
}

// ResyncSequence raises a counter after manual data surgery so future
// allocations cannot collide with rows inserted out of band.
func (h *Handler) ResyncSequence(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ResyncSequence")
	defer span.End()

	name := r.PathValue("name")

	var req resyncSequenceRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: decode request body: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validator.StructCtx(ctx, req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: %v", usecase.ErrInvalidInput, err))
		return
	}

	if err := h.allocator.Resync(ctx, name, req.ObservedMax); err != nil {
		h.logger.ErrorContext(ctx, "sequence resync failed", "sequence", name, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, resyncSequenceResponse{
		Name:        name,
		ObservedMax: req.ObservedMax,
	})
}

// readFilePart reads one uploaded document. A missing part is not an
// error; every document is optional at the transport layer.
func readFilePart(r *http.Request, field string) ([]byte, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read part %s: %v", usecase.ErrInvalidInput, field, err)
	}
	defer func() {
		_ = file.Close()
	}()

	if header.Size > maxDocumentBytes {
		return nil, fmt.Errorf("%w: document %s exceeds %d bytes", usecase.ErrInvalidInput, field, maxDocumentBytes)
	}

	content, err := io.ReadAll(io.LimitReader(file, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read part %s: %v", usecase.ErrInvalidInput, field, err)
	}
	if int64(len(content)) > maxDocumentBytes {
		return nil, fmt.Errorf("%w: document %s exceeds %d bytes", usecase.ErrInvalidInput, field, maxDocumentBytes)
	}
	return content, nil
}
