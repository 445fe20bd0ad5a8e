package routes

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/didip/tollbooth/v6"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/watukazi/authv1/dbhelper"
	"github.com/watukazi/authv1/utils"
)

type TokenResponse struct {
	Token string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User map[string]interface{} `json:"user"`
}

type StatusResponse struct {
	Success bool `json:"success"`
	Message string `json:"message"`
}

type OTPResponse struct {
	Success bool `json:"success"`
	Message string `json:"message"`
	VerificationToken string `json:"verificationToken,omitempty"`
}

type LoginAttempt struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,min=7,max=16"`
	Password string `json:"password" validate:"required"`
}

type RegisterAttempt struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,min=7,max=16"`
	Email string `json:"email" validate:"omitempty,email"`
	FullName string `json:"fullName" validate:"required,min=2,max=128"`
	Password string `json:"password" validate:"required,min=8,max=64,eqfield=ConfirmPassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,min=8,max=64"`
}

type SendOTPRequest struct {
	Identifier string `json:"identifier" validate:"required,min=5,max=128"`
}

type VerifyOTPRequest struct {
	Identifier string `json:"identifier" validate:"required,min=5,max=128"`
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type ResetPasswordRequest struct {
	Identifier string `json:"identifier" validate:"required,min=5,max=128"`
	Code string `json:"code" validate:"required,len=6,numeric"`
	Password string `json:"password" validate:"required,min=8,max=64,eqfield=ConfirmPassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,min=8,max=64"`
}

type RequestBody interface {
	LoginAttempt | RegisterAttempt | SendOTPRequest | VerifyOTPRequest | ResetPasswordRequest
}

func AuthRouter(s *mux.Router) {
	// OTP and reset dispatch are throttled per client on top of the
	// per-identifier caps enforced in dbhelper.
	otpLimiter := tollbooth.NewLimiter(1, nil)
	s.HandleFunc("/login", Login).Methods("POST")
	s.HandleFunc("/register", Register).Methods("POST")
	s.HandleFunc("/register-provider", RegisterProvider).Methods("POST")
	s.Handle("/send-otp", tollbooth.LimitFuncHandler(otpLimiter, SendOTP)).Methods("POST")
	s.HandleFunc("/verify-otp", VerifyOTP).Methods("POST")
	s.Handle("/forgot-password", tollbooth.LimitFuncHandler(otpLimiter, ForgotPassword)).Methods("POST")
	s.HandleFunc("/reset-password", ResetPassword).Methods("POST")
}

func GenericAuthError(w http.ResponseWriter, err error, errorMessage string) {
	log.Println(err)
	http.Error(w, errorMessage, http.StatusBadRequest)
}

func DecodeValidBody[B RequestBody](r *http.Request) (B, error) {
	decoder := json.NewDecoder(r.Body)
	var requestBody B
	err := decoder.Decode(&requestBody)
	if err != nil {
		return requestBody, err
	}
	err = validate.Struct(requestBody)
	if err != nil {
		return requestBody, err
	}
	return requestBody, nil
}

func Login(w http.ResponseWriter, r *http.Request) {
	loginAttempt, err := DecodeValidBody[LoginAttempt](r)
	if err != nil {
		GenericAuthError(w, err, utils.GENERIC_LOGIN_ERROR)
		return
	}
	user, accessToken, refreshToken, err, errMessage := dbhelper.LoginUserWithPassword(
		loginAttempt.PhoneNumber,
		loginAttempt.Password,
	)
	if err != nil {
		GenericAuthError(w, err, errMessage)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TokenResponse{
		Token: accessToken.TokenString,
		RefreshToken: refreshToken.TokenString,
		User: map[string]interface{}{
			"id": user.ID,
			"phoneNumber": user.PhoneNumber,
			"email": user.Email,
			"fullName": user.FullName,
			"role": user.Role,
			"phoneVerified": user.PhoneVerified,
			"emailVerified": user.EmailVerified,
		},
	})
}

func registerWithRole(w http.ResponseWriter, r *http.Request, role string) {
	registerAttempt, err := DecodeValidBody[RegisterAttempt](r)
	if err != nil {
		GenericAuthError(w, err, utils.GENERIC_REGISTER_ERROR)
		return
	}
	passwordHash, err := utils.HashPassword(registerAttempt.Password)
	if err != nil {
		GenericAuthError(w, err, utils.GENERIC_REGISTER_ERROR)
		return
	}
	err, errMessage := dbhelper.CreateUser(
		registerAttempt.PhoneNumber,
		registerAttempt.Email,
		registerAttempt.FullName,
		passwordHash,
		role,
	)
	if err != nil {
		GenericAuthError(w, err, errMessage)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(StatusResponse{
		Success: true,
		Message: "Account created! Please verify your phone number.",
	})
}

func Register(w http.ResponseWriter, r *http.Request) {
	registerWithRole(w, r, utils.ROLE_CLIENT)
}

func RegisterProvider(w http.ResponseWriter, r *http.Request) {
	registerWithRole(w, r, utils.ROLE_PROVIDER)
}

func SendOTP(w http.ResponseWriter, r *http.Request) {
	sendRequest, err := DecodeValidBody[SendOTPRequest](r)
	if err != nil {
		GenericAuthError(w, err, utils.GENERIC_SEND_OTP_ERROR)
		return
	}
	verificationToken := uuid.NewString()
	err, errMessage := dbhelper.CreateOTPCode(sendRequest.Identifier, verificationToken)
	if err != nil {
		GenericAuthError(w, err, errMessage)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(OTPResponse{
		Success: true,
		Message: "New verification code sent!",
		VerificationToken: verificationToken,
	})
}

func VerifyOTP(w http.ResponseWriter, r *http.Request) {
	verifyRequest, err := DecodeValidBody[VerifyOTPRequest](r)
	if err != nil {
		GenericAuthError(w, err, utils.GENERIC_VERIFY_OTP_ERROR)
		return
	}
	err, errMessage := dbhelper.VerifyOTPCode(verifyRequest.Identifier, verifyRequest.Code)
	if err != nil {
		GenericAuthError(w, err, errMessage)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatusResponse{
		Success: true,
		Message: "Verified!",
	})
}

func ForgotPassword(w http.ResponseWriter, r *http.Request) {
	sendRequest, err := DecodeValidBody[SendOTPRequest](r)
	if err != nil {
		GenericAuthError(w, err, utils.GENERIC_SEND_OTP_ERROR)
		return
	}
	err, errMessage := dbhelper.CreateOTPCode(sendRequest.Identifier, uuid.NewString())
	if err != nil {
		GenericAuthError(w, err, errMessage)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatusResponse{
		Success: true,
		Message: "New verification code sent!",
	})
}

func ResetPassword(w http.ResponseWriter, r *http.Request) {
	resetRequest, err := DecodeValidBody[ResetPasswordRequest](r)
	if err != nil {
		GenericAuthError(w, err, utils.GENERIC_PASSWORD_RESET_ERROR)
		return
	}
	passwordHash, err := utils.HashPassword(resetRequest.Password)
	if err != nil {
		GenericAuthError(w, err, utils.GENERIC_PASSWORD_RESET_ERROR)
		return
	}
	err, errMessage := dbhelper.ResetPasswordWithCode(
		resetRequest.Identifier,
		resetRequest.Code,
		passwordHash,
	)
	if err != nil {
		GenericAuthError(w, err, errMessage)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatusResponse{
		Success: true,
		Message: "Password updated! Please log in.",
	})
}
