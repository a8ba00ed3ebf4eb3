package onboarding

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ezeehealth/clinicportal-go/internal/api"
	"github.com/ezeehealth/clinicportal-go/internal/appctx"
	"github.com/ezeehealth/clinicportal-go/internal/otp"
)

// Handler exposes the activation flow over HTTP.
type Handler struct {
	engine *Engine
}

// NewHandler creates the onboarding HTTP handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// Routes returns the router to mount under /api/auth.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/verify-invitation", h.verifyStaffInvitation)
	r.Post("/staff/setup", h.staffSetup)
	r.Post("/patient/verify-invite", h.verifyPatientInvite)
	r.Post("/patient/setup", h.patientSetup)
	r.Post("/verify-otp", h.verifyOTP)
	return r
}

type verifyRequest struct {
	InvitationCode string `json:"invitation_code"`
}

type setupRequest struct {
	InvitationCode string `json:"invitation_code"`
	Password       string `json:"password"`
}

type verifyOTPRequest struct {
	Identifier string `json:"identifier"`
	OTP        string `json:"otp"`
}

type staffVerifyResponse struct {
	StaffName  string `json:"staff_name"`
	ClinicName string `json:"clinic_name"`
	Role       string `json:"role"`
	Email      string `json:"email"`
	Mobile     string `json:"mobile"`
}

type patientVerifyResponse struct {
	PatientName string `json:"patient_name"`
	ClinicName  string `json:"clinic_name"`
	Mobile      string `json:"mobile"`
}

type setupResponse struct {
	Identifier  string `json:"identifier"`
	OTPRequired bool   `json:"otp_required"`
}

type verifyOTPResponse struct {
	Activated bool `json:"activated"`
}

func (h *Handler) verifyStaffInvitation(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.InvitationCode == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "invitation_code is required")
		return
	}

	info, err := h.engine.Verify(r.Context(), KindStaff, req.InvitationCode)
	if err != nil {
		writeFlowError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, staffVerifyResponse{
		StaffName:  info.Name,
		ClinicName: info.ClinicName,
		Role:       info.Role,
		Email:      info.Email,
		Mobile:     info.Mobile,
	})
}

func (h *Handler) verifyPatientInvite(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.InvitationCode == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "invitation_code is required")
		return
	}

	info, err := h.engine.Verify(r.Context(), KindPatient, req.InvitationCode)
	if err != nil {
		writeFlowError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, patientVerifyResponse{
		PatientName: info.Name,
		ClinicName:  info.ClinicName,
		Mobile:      info.Mobile,
	})
}

func (h *Handler) staffSetup(w http.ResponseWriter, r *http.Request) {
	h.setup(w, r, KindStaff)
}

func (h *Handler) patientSetup(w http.ResponseWriter, r *http.Request) {
	h.setup(w, r, KindPatient)
}

func (h *Handler) setup(w http.ResponseWriter, r *http.Request, kind Kind) {
	var req setupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.InvitationCode == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "invitation_code is required")
		return
	}
	if req.Password == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "password is required")
		return
	}

	identifier, err := h.engine.SetPassword(r.Context(), kind, req.InvitationCode, req.Password)
	if err != nil {
		writeFlowError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, setupResponse{
		Identifier:  identifier,
		OTPRequired: true,
	})
}

func (h *Handler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Identifier == "" || req.OTP == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "identifier and otp are required")
		return
	}

	if err := h.engine.VerifyOTP(r.Context(), req.Identifier, req.OTP); err != nil {
		writeFlowError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, verifyOTPResponse{Activated: true})
}

// decodeBody decodes a JSON request body, writing the error response itself.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeFlowError maps engine errors to HTTP responses.
func writeFlowError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredential):
		api.WriteBadRequest(w, api.ReasonInvalidCredential, "invalid invitation code")
	case errors.Is(err, ErrExpiredCredential):
		api.WriteBadRequest(w, api.ReasonInvalidCredential, "invitation code has expired")
	case errors.Is(err, ErrAlreadyActivated):
		api.WriteError(w, http.StatusConflict, api.ReasonAlreadyActivated, "account is already activated")
	case errors.Is(err, ErrWeakPassword):
		api.WriteBadRequest(w, api.ReasonWeakPassword, "password does not meet the minimum requirements")
	case errors.Is(err, otp.ErrDeliveryFailed):
		api.WriteError(w, http.StatusBadGateway, api.ReasonDeliveryFailed, "could not send verification code, please retry")
	case errors.Is(err, otp.ErrMismatch):
		api.WriteBadRequest(w, api.ReasonOtpMismatch, "incorrect verification code")
	case errors.Is(err, otp.ErrExpired):
		api.WriteBadRequest(w, api.ReasonOtpExpired, "verification code expired, request a new one")
	case errors.Is(err, otp.ErrLocked):
		api.WriteBadRequest(w, api.ReasonOtpLocked, "too many incorrect attempts, restart the setup step")
	default:
		appctx.GetLogger(r.Context()).Error("onboarding request failed", "error", err)
		api.WriteInternalError(w, "internal error")
	}
}
