// Package httpapi exposes the share engine over HTTP/JSON with chi. Handlers
// only decode, validate shape and map errors; every rule lives in services.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/dmitrijs2005/secureshare/internal/common"
	"github.com/dmitrijs2005/secureshare/internal/logging"
	"github.com/dmitrijs2005/secureshare/internal/server/auth"
	"github.com/dmitrijs2005/secureshare/internal/server/models"
	"github.com/dmitrijs2005/secureshare/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// Engine is the set of caller-facing operations the API serves.
type Engine interface {
	InitiateUpload(ctx context.Context, r services.UploadRequest) (*services.UploadTicket, error)
	ListFiles(ctx context.Context, ownerID string) ([]services.FileSummary, error)
	RevokeFile(ctx context.Context, fileID, requesterID string) error
	DescribeFile(ctx context.Context, fileID string) (*services.FileSummary, error)
	SendPasscode(ctx context.Context, fileID, ownerID string, r services.PasscodeRecipient) (*services.IssueResult, error)
	SendPasscodes(ctx context.Context, fileID, ownerID string, rs []services.PasscodeRecipient) ([]services.PasscodeOutcome, error)
	VerifyPasscode(ctx context.Context, fileID, phone, code string) (*services.VerifyOutcome, error)
	FetchFileMetadataForDownload(ctx context.Context, fileID string, grant *auth.Grant) (*services.DownloadMetadata, error)
	RecordDownload(ctx context.Context, fileID string, grant *auth.Grant) (*models.DownloadResult, error)
	SendInvitations(ctx context.Context, fileID, senderID string, emails []string) ([]services.InviteOutcome, error)
	ValidateInvitation(ctx context.Context, token string) (*models.Invitation, error)
	AcceptInvitation(ctx context.Context, token, userID string) (*models.Invitation, error)
}

// TokenParser resolves owner tokens and download grants.
type TokenParser interface {
	UserID(token string) (string, error)
	ParseGrant(token string) (*auth.Grant, error)
}

type Handler struct {
	engine   Engine
	tokens   TokenParser
	validate *validator.Validate
	log      logging.Logger
}

func NewHandler(engine Engine, tokens TokenParser, log logging.Logger) *Handler {
	v := validator.New()
	// report JSON names in validation errors
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{engine: engine, tokens: tokens, validate: v, log: log.With("module", "httpapi")}
}

// decode reads a JSON body into dst and runs struct validation on it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return common.NewValidationError("", "malformed JSON body")
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return common.NewValidationError(verrs[0].Field(), "failed "+verrs[0].Tag()+" check")
		}
		return common.NewValidationError("", err.Error())
	}
	return nil
}

func (h *Handler) handleInitiateUpload(w http.ResponseWriter, r *http.Request) {
	var req initiateUploadRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	ticket, err := h.engine.InitiateUpload(r.Context(), services.UploadRequest{
		OwnerID:           userIDFrom(r.Context()),
		EncryptedFileName: req.EncryptedFileName,
		FileSize:          req.FileSize,
		FileSalt:          req.FileSalt,
		FileIV:            req.FileIV,
		MasterKeyHash:     req.MasterKeyHash,
		MetadataIV:        req.MetadataIV,
		BurnAfterRead:     req.BurnAfterRead,
		ExpiryHours:       req.ExpiryHours,
	})
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	h.respondWithJSON(w, r, http.StatusCreated, uploadResponse{
		FileID:             ticket.FileID,
		UploadURL:          ticket.UploadURL,
		UploadURLExpiresAt: ticket.UploadURLExpiresAt,
		ExpiresAt:          ticket.ExpiresAt,
	})
}

func (h *Handler) handleListFiles(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.ListFiles(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	out := fileListResponse{Files: make([]fileResponse, 0, len(list))}
	for _, f := range list {
		out.Files = append(out.Files, toFileResponse(f))
	}
	h.respondWithJSON(w, r, http.StatusOK, out)
}

func (h *Handler) handleRevokeFile(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.RevokeFile(r.Context(), chi.URLParam(r, "id"), userIDFrom(r.Context())); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDescribeFile(w http.ResponseWriter, r *http.Request) {
	f, err := h.engine.DescribeFile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, r, http.StatusOK, toFileResponse(*f))
}

// handleSendPasscodes serves both the single-recipient form ({"phone"}) and
// the batch form ({"recipients": [...]}).
func (h *Handler) handleSendPasscodes(w http.ResponseWriter, r *http.Request) {
	var req sendPasscodeRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	fileID, ownerID := chi.URLParam(r, "id"), userIDFrom(r.Context())

	if len(req.Recipients) > 0 {
		rs := make([]services.PasscodeRecipient, 0, len(req.Recipients))
		for _, p := range req.Recipients {
			rs = append(rs, services.PasscodeRecipient{Phone: p.Phone, RecipientID: p.RecipientID})
		}
		out, err := h.engine.SendPasscodes(r.Context(), fileID, ownerID, rs)
		if err != nil {
			h.respondWithError(w, r, err)
			return
		}
		resp := passcodeBatchResponse{Results: make([]passcodeResult, 0, len(out))}
		for _, o := range out {
			resp.Results = append(resp.Results, toPasscodeResult(o))
		}
		h.respondWithJSON(w, r, http.StatusOK, resp)
		return
	}

	if req.Phone == "" {
		h.respondWithError(w, r, common.NewValidationError("phone", "required"))
		return
	}
	res, err := h.engine.SendPasscode(r.Context(), fileID, ownerID, services.PasscodeRecipient{Phone: req.Phone, RecipientID: req.RecipientID})
	if err != nil {
		h.respondWithErrorBody(w, r, err, func(b *errorBody) {
			if res != nil {
				b.ChallengeID = res.ChallengeID
			}
		})
		return
	}
	h.respondWithJSON(w, r, http.StatusCreated, passcodeResponse{
		ChallengeID:       res.ChallengeID,
		Delivered:         res.Delivered,
		ProviderMessageID: res.ProviderMessageID,
		ExpiresAt:         res.ExpiresAt,
	})
}

func (h *Handler) handleVerifyPasscode(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	out, err := h.engine.VerifyPasscode(r.Context(), chi.URLParam(r, "id"), req.Phone, req.Code)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, r, http.StatusOK, verifyResponse{
		ChallengeID:    out.ChallengeID,
		Grant:          out.Grant,
		GrantExpiresAt: out.GrantExpiresAt,
	})
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	md, err := h.engine.FetchFileMetadataForDownload(r.Context(), chi.URLParam(r, "id"), grantFrom(r.Context()))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, r, http.StatusOK, downloadResponse{
		FileID:               md.FileID,
		EncryptedFileName:    md.EncryptedFileName,
		FileSize:             md.FileSize,
		FileSalt:             md.FileSalt,
		FileIV:               md.FileIV,
		MasterKeyHash:        md.MasterKeyHash,
		MetadataIV:           md.MetadataIV,
		BurnAfterRead:        md.BurnAfterRead,
		DownloadURL:          md.DownloadURL,
		DownloadURLExpiresAt: md.DownloadURLExpiresAt,
	})
}

func (h *Handler) handleRecordDownload(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.RecordDownload(r.Context(), chi.URLParam(r, "id"), grantFrom(r.Context()))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, r, http.StatusOK, recordDownloadResponse{DownloadCount: res.DownloadCount, Burned: res.Burned})
}

func (h *Handler) handleSendInvitations(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	out, err := h.engine.SendInvitations(r.Context(), chi.URLParam(r, "id"), userIDFrom(r.Context()), req.Emails)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	resp := inviteResponse{Results: make([]inviteResult, 0, len(out))}
	for _, o := range out {
		resp.Results = append(resp.Results, inviteResult{
			Email:        o.Email,
			Status:       string(o.Status),
			InvitationID: o.InvitationID,
			Reason:       o.Reason,
		})
	}
	h.respondWithJSON(w, r, http.StatusOK, resp)
}

func (h *Handler) handleValidateInvitation(w http.ResponseWriter, r *http.Request) {
	inv, err := h.engine.ValidateInvitation(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, r, http.StatusOK, toInvitationResponse(inv))
}

func (h *Handler) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	inv, err := h.engine.AcceptInvitation(r.Context(), chi.URLParam(r, "token"), userIDFrom(r.Context()))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, r, http.StatusOK, toInvitationResponse(inv))
}
