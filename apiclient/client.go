package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
)

// API_URL_ENV overrides the default base URL when set.
const API_URL_ENV = "WATUKAZI_API_URL"

const defaultBaseURL = "https://api.watukazi.com"

// APIError is a non-2xx response from the API. Transport failures (DNS,
// refused connection, timeout) come back as ordinary errors instead, so
// callers can tell "the server said no" from "the server never answered".
type APIError struct {
	StatusCode int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d: %s", e.StatusCode, e.Message)
}

// Client talks to the WatuKazi REST API. All methods validate their inputs
// locally before issuing a request.
type Client struct {
	BaseURL string
	HTTPClient *http.Client
	validate *validator.Validate
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		validate: validator.New(),
	}
}

// NewFromEnv builds a client from WATUKAZI_API_URL, falling back to the
// production URL.
func NewFromEnv() *Client {
	return New(os.Getenv(API_URL_ENV))
}

type LoginResult struct {
	Token string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User map[string]interface{} `json:"user"`
}

type statusResult struct {
	Success bool `json:"success"`
	Message string `json:"message"`
}

type SendOTPResult struct {
	Success bool `json:"success"`
	Message string `json:"message"`
	VerificationToken string `json:"verificationToken"`
}

type RegisterParams struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,min=7,max=16"`
	Email string `json:"email" validate:"omitempty,email"`
	FullName string `json:"fullName" validate:"required,min=2,max=128"`
	Password string `json:"password" validate:"required,min=8,max=64,eqfield=ConfirmPassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,min=8,max=64"`
}

type loginParams struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,min=7,max=16"`
	Password string `json:"password" validate:"required"`
}

type identifierParams struct {
	Identifier string `json:"identifier" validate:"required,min=5,max=128"`
}

type verifyParams struct {
	Identifier string `json:"identifier" validate:"required,min=5,max=128"`
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type resetParams struct {
	Identifier string `json:"identifier" validate:"required,min=5,max=128"`
	Code string `json:"code" validate:"required,len=6,numeric"`
	Password string `json:"password" validate:"required,min=8,max=64,eqfield=ConfirmPassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,min=8,max=64"`
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

// errorMessage pulls a human message out of an error body, whether the API
// returned JSON or bare text.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return string(bytes.TrimSpace(data))
}

func (c *Client) Login(ctx context.Context, phoneNumber, password string) (*LoginResult, error) {
	params := loginParams{PhoneNumber: phoneNumber, Password: password}
	if err := c.validate.Struct(params); err != nil {
		return nil, err
	}
	var result LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Register(ctx context.Context, params RegisterParams) error {
	if err := c.validate.Struct(params); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/auth/register", "", params, nil)
}

func (c *Client) RegisterProvider(ctx context.Context, params RegisterParams) error {
	if err := c.validate.Struct(params); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/auth/register-provider", "", params, nil)
}

func (c *Client) SendOTP(ctx context.Context, identifier string) (*SendOTPResult, error) {
	params := identifierParams{Identifier: identifier}
	if err := c.validate.Struct(params); err != nil {
		return nil, err
	}
	var result SendOTPResult
	if err := c.do(ctx, http.MethodPost, "/auth/send-otp", "", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// VerifyOTP submits identifier+code. The bearer token is optional: when the
// send step produced no real verification token the call goes out with
// identifier and code alone.
func (c *Client) VerifyOTP(ctx context.Context, identifier, code, bearer string) error {
	params := verifyParams{Identifier: identifier, Code: code}
	if err := c.validate.Struct(params); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/auth/verify-otp", bearer, params, nil)
}

func (c *Client) ForgotPassword(ctx context.Context, identifier string) error {
	params := identifierParams{Identifier: identifier}
	if err := c.validate.Struct(params); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/auth/forgot-password", "", params, nil)
}

func (c *Client) ResetPassword(ctx context.Context, identifier, code, password, confirmPassword string) error {
	params := resetParams{
		Identifier: identifier,
		Code: code,
		Password: password,
		ConfirmPassword: confirmPassword,
	}
	if err := c.validate.Struct(params); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/auth/reset-password", "", params, nil)
}

func (c *Client) GetProfile(ctx context.Context, accessToken string) (map[string]interface{}, error) {
	var profile map[string]interface{}
	if err := c.do(ctx, http.MethodGet, "/users/profile", accessToken, nil, &profile); err != nil {
		return nil, err
	}
	return profile, nil
}
