package dbhelper

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/watukazi/authv1/models"
	"github.com/watukazi/authv1/utils"
	"gorm.io/gorm"
)

func LoginUserWithPassword(phoneNumber, password string) (models.User, utils.JWT_TOKEN, utils.JWT_TOKEN, error, string) {
	tx := DB.Begin()
	defer tx.Rollback()
	var accessToken, refreshToken utils.JWT_TOKEN
	var loginAttempts models.LoginAttempts
	var user models.User
	loginAttempts, err := GetLoginAttempts(tx, phoneNumber)
	if err != nil {
		return user, accessToken, refreshToken, err, utils.GENERIC_LOGIN_ERROR
	}
	if time.Now().After(loginAttempts.BanExpiresAt) {
		loginAttempts.NumAttempts = 0
	}
	result := tx.Raw("SELECT * FROM users WHERE phone_number = ?", phoneNumber).Scan(&user)
	if result.Error != nil {
		return user, accessToken, refreshToken, result.Error, utils.GENERIC_LOGIN_ERROR
	}
	compareErr := utils.ComparePasswords(user.PasswordHash, password)
	loginValid := loginAttempts.NumAttempts < utils.MAX_NUM_LOGIN_ATTEMPTS && result.RowsAffected > 0 && compareErr == nil
	accessToken, err = utils.CreateToken(user.ID, user.Role, user.FullName, utils.ACCESS_TYPE)
	if err != nil {
		return user, accessToken, refreshToken, err, utils.GENERIC_LOGIN_ERROR
	}
	refreshToken, err = utils.CreateToken(user.ID, user.Role, user.FullName, utils.REFRESH_TYPE)
	if err != nil {
		return user, accessToken, refreshToken, err, utils.GENERIC_LOGIN_ERROR
	}
	if loginValid {
		tokenObject := models.RefreshToken{
			UserID: user.ID,
			TokenString: refreshToken.TokenString,
			TokenExpiresAt: refreshToken.ExpireTime,
		}
		tokenResult := tx.Create(&tokenObject)
		if tokenResult.Error != nil {
			return user, accessToken, refreshToken, tokenResult.Error, utils.GENERIC_LOGIN_ERROR
		}
		loginAttempts.NumAttempts = 0
	} else {
		if loginAttempts.NumAttempts < utils.MAX_NUM_LOGIN_ATTEMPTS {
			loginAttempts.NumAttempts++
			loginAttempts.BanExpiresAt = time.Now().Add(time.Minute * utils.LOGIN_BAN_DURATION)
		}
	}
	updateResult := tx.Save(&loginAttempts)
	if updateResult.Error != nil {
		return user, accessToken, refreshToken, updateResult.Error, utils.GENERIC_LOGIN_ERROR
	}
	tx.Commit()
	if loginValid {
		return user, accessToken, refreshToken, nil, ""
	}
	if loginAttempts.NumAttempts == utils.MAX_NUM_LOGIN_ATTEMPTS {
		errorMessage := "We had some trouble logging you in. " + utils.GenerateBanMessage(loginAttempts.BanExpiresAt)
		return user, accessToken, refreshToken, errors.New(errorMessage), errorMessage
	}
	return user, accessToken, refreshToken, errors.New("Login unsuccessful."), utils.GENERIC_LOGIN_ERROR
}

func CreateUser(phoneNumber, email, fullName, passwordHash, role string) (error, string) {
	tx := DB.Begin()
	defer tx.Rollback()
	user := models.User{
		PhoneNumber: phoneNumber,
		Email: email,
		PasswordHash: passwordHash,
		FullName: fullName,
		Role: role,
		PhoneVerified: false,
		EmailVerified: false,
	}
	result := tx.Create(&user)
	if result.Error != nil {
		errString := fmt.Sprintf("%v", result.Error)
		if strings.HasPrefix(errString, utils.GORM_ERR_CODE_DUPLICATE_KEY) {
			if strings.HasSuffix(errString, "'users.phone_number'") {
				return result.Error, utils.PHONE_TAKEN_REGISTER_ERROR
			} else if strings.HasSuffix(errString, "'users.email'") {
				return result.Error, utils.EMAIL_TAKEN_REGISTER_ERROR
			}
		}
		return result.Error, utils.GENERIC_REGISTER_ERROR
	}
	tx.Commit()
	return nil, ""
}

// CreateOTPCode issues a fresh code for the identifier (phone or email),
// invalidating any earlier codes. The returned verification token is handed
// to the client as a bearer credential for the verify call.
func CreateOTPCode(identifier, verificationToken string) (error, string) {
	tx := DB.Begin()
	defer tx.Rollback()
	var otpAttempts models.OTPAttempts
	otpAttempts, err := GetOTPAttempts(tx, identifier)
	if err != nil {
		return err, utils.GENERIC_SEND_OTP_ERROR
	}
	if time.Now().After(otpAttempts.RequestsBanExpiresAt) {
		otpAttempts.NumRequests = 0
	}
	code := utils.GetVerificationCode()
	if otpAttempts.NumRequests < utils.MAX_NUM_OTP_REQUESTS {
		otpAttempts.NumRequests++
		otpAttempts.RequestsBanExpiresAt = time.Now().Add(time.Minute * utils.OTP_REQUEST_BAN_DURATION)
		deleteResult := tx.Exec("DELETE FROM otp_codes WHERE identifier = ?", identifier)
		if deleteResult.Error != nil {
			return deleteResult.Error, utils.GENERIC_SEND_OTP_ERROR
		}
		otpCode := models.OTPCode{
			Identifier: identifier,
			Code: code,
			VerificationToken: verificationToken,
			CodeExpiresAt: time.Now().Add(time.Minute * utils.CODE_DURATION),
		}
		codeResult := tx.Create(&otpCode)
		if codeResult.Error != nil {
			return codeResult.Error, utils.GENERIC_SEND_OTP_ERROR
		}
		// hand off to the SMS/email gateway here
	}
	updateResult := tx.Save(&otpAttempts)
	if updateResult.Error != nil {
		return updateResult.Error, utils.GENERIC_SEND_OTP_ERROR
	}
	tx.Commit()
	if otpAttempts.NumRequests < utils.MAX_NUM_OTP_REQUESTS {
		return nil, ""
	}
	errorMessage := "You've been requesting codes a lot. " + utils.GenerateBanMessage(otpAttempts.RequestsBanExpiresAt)
	return errors.New(errorMessage), errorMessage
}

// VerifyOTPCode checks identifier+code, marks the matching user verified and
// burns the code on success.
func VerifyOTPCode(identifier, code string) (error, string) {
	tx := DB.Begin()
	defer tx.Rollback()
	var otpAttempts models.OTPAttempts
	var otpCode models.OTPCode
	otpAttempts, err := GetOTPAttempts(tx, identifier)
	if err != nil {
		return err, utils.GENERIC_VERIFY_OTP_ERROR
	}
	if time.Now().After(otpAttempts.AttemptsBanExpiresAt) {
		otpAttempts.NumAttempts = 0
	}
	codeResult := tx.Raw("SELECT * FROM otp_codes WHERE identifier = ? AND code = ?", identifier, code).Scan(&otpCode)
	if codeResult.Error != nil {
		return codeResult.Error, utils.GENERIC_VERIFY_OTP_ERROR
	}
	codeValid := codeResult.RowsAffected > 0 && time.Now().Before(otpCode.CodeExpiresAt)
	if otpAttempts.NumAttempts < utils.MAX_NUM_OTP_ATTEMPTS {
		if codeValid {
			otpAttempts.NumAttempts = 0
			column := "phone_verified"
			if strings.Contains(identifier, "@") {
				column = "email_verified"
			}
			updateResult := tx.Exec(
				"UPDATE users SET "+column+" = true WHERE phone_number = ? OR email = ?",
				identifier,
				identifier,
			)
			if updateResult.Error != nil {
				return updateResult.Error, utils.GENERIC_VERIFY_OTP_ERROR
			}
			codeDelete := tx.Exec("DELETE FROM otp_codes WHERE id = ?", otpCode.ID)
			if codeDelete.Error != nil {
				return codeDelete.Error, utils.GENERIC_VERIFY_OTP_ERROR
			}
		} else {
			otpAttempts.NumAttempts++
			otpAttempts.AttemptsBanExpiresAt = time.Now().Add(time.Minute * utils.OTP_ATTEMPT_BAN_DURATION)
		}
	}
	updateResult := tx.Save(&otpAttempts)
	if updateResult.Error != nil {
		return updateResult.Error, utils.GENERIC_VERIFY_OTP_ERROR
	}
	tx.Commit()
	if !codeValid {
		if otpAttempts.NumAttempts == utils.MAX_NUM_OTP_ATTEMPTS {
			errorMessage := "We had some trouble verifying your code. " + utils.GenerateBanMessage(otpAttempts.AttemptsBanExpiresAt)
			return errors.New(errorMessage), errorMessage
		}
		return errors.New("Verification unsuccessful."), utils.GENERIC_VERIFY_OTP_ERROR
	}
	return nil, ""
}

// ResetPasswordWithCode burns a valid code and replaces the user's password,
// revoking every outstanding refresh token.
func ResetPasswordWithCode(identifier, code, passwordHash string) (error, string) {
	tx := DB.Begin()
	defer tx.Rollback()
	var otpAttempts models.OTPAttempts
	var user models.User
	var otpCode models.OTPCode
	otpAttempts, err := GetOTPAttempts(tx, identifier)
	if err != nil {
		return err, utils.GENERIC_PASSWORD_RESET_ERROR
	}
	if time.Now().After(otpAttempts.AttemptsBanExpiresAt) {
		otpAttempts.NumAttempts = 0
	}
	userResult := tx.Raw("SELECT * FROM users WHERE phone_number = ? OR email = ?", identifier, identifier).Scan(&user)
	if userResult.Error != nil {
		return userResult.Error, utils.GENERIC_PASSWORD_RESET_ERROR
	}
	codeResult := tx.Raw("SELECT * FROM otp_codes WHERE identifier = ? AND code = ?", identifier, code).Scan(&otpCode)
	if codeResult.Error != nil {
		return codeResult.Error, utils.GENERIC_PASSWORD_RESET_ERROR
	}
	codeValid := userResult.RowsAffected > 0 && codeResult.RowsAffected > 0 && time.Now().Before(otpCode.CodeExpiresAt)
	if otpAttempts.NumAttempts < utils.MAX_NUM_OTP_ATTEMPTS {
		if codeValid {
			otpAttempts.NumAttempts = 0
			user.PasswordHash = passwordHash
			updateResult := tx.Save(&user)
			if updateResult.Error != nil {
				return updateResult.Error, utils.GENERIC_PASSWORD_RESET_ERROR
			}
			codeDelete := tx.Exec("DELETE FROM otp_codes WHERE id = ?", otpCode.ID)
			if codeDelete.Error != nil {
				return codeDelete.Error, utils.GENERIC_PASSWORD_RESET_ERROR
			}
			deleteResult := tx.Exec("DELETE FROM refresh_tokens WHERE user_id = ?", user.ID)
			if deleteResult.Error != nil {
				return deleteResult.Error, utils.GENERIC_PASSWORD_RESET_ERROR
			}
			// send a password-change notification here
		} else {
			otpAttempts.NumAttempts++
			otpAttempts.AttemptsBanExpiresAt = time.Now().Add(time.Minute * utils.OTP_ATTEMPT_BAN_DURATION)
		}
	}
	updateResult := tx.Save(&otpAttempts)
	if updateResult.Error != nil {
		return updateResult.Error, utils.GENERIC_PASSWORD_RESET_ERROR
	}
	tx.Commit()
	if !codeValid {
		if otpAttempts.NumAttempts == utils.MAX_NUM_OTP_ATTEMPTS {
			errorMessage := "We had some trouble resetting your password. " + utils.GenerateBanMessage(otpAttempts.AttemptsBanExpiresAt)
			return errors.New(errorMessage), errorMessage
		}
		return errors.New("Password reset unsuccessful."), utils.GENERIC_PASSWORD_RESET_ERROR
	}
	return nil, ""
}

func GetUserByID(userID string) (models.User, error) {
	tx := DB.Begin()
	defer tx.Rollback()
	var user models.User
	result := tx.Raw("SELECT * FROM users WHERE id = ?", userID).Scan(&user)
	tx.Commit()
	if result.Error != nil {
		return user, result.Error
	}
	if result.RowsAffected == 0 {
		return user, errors.New("No such user.")
	}
	return user, nil
}

func RefreshTokenExists(userID uint, tokenString string) bool {
	tx := DB.Begin()
	defer tx.Rollback()
	var refreshToken models.RefreshToken
	tokenResult := tx.Raw(
		"SELECT * FROM refresh_tokens WHERE token_string = ? AND user_id = ?",
		tokenString,
		userID,
	).Scan(&refreshToken)
	tx.Commit()
	if tokenResult.Error != nil || tokenResult.RowsAffected == 0 {
		return false
	}
	if time.Now().After(refreshToken.TokenExpiresAt) {
		return false
	}
	return true
}

func GetLoginAttempts(tx *gorm.DB, phoneNumber string) (models.LoginAttempts, error) {
	var loginAttempts models.LoginAttempts
	result := tx.Raw("SELECT * FROM login_attempts WHERE phone_number = ? FOR UPDATE", phoneNumber).Scan(&loginAttempts)
	if result.Error != nil {
		return loginAttempts, result.Error
	}
	if result.RowsAffected == 0 {
		loginAttempts = models.LoginAttempts{
			PhoneNumber: phoneNumber,
			NumAttempts: 0,
			BanExpiresAt: time.Now(),
		}
		createResult := tx.Create(&loginAttempts)
		if createResult.Error != nil {
			return loginAttempts, createResult.Error
		}
	}
	return loginAttempts, nil
}

func GetOTPAttempts(tx *gorm.DB, identifier string) (models.OTPAttempts, error) {
	var otpAttempts models.OTPAttempts
	result := tx.Raw("SELECT * FROM otp_attempts WHERE identifier = ? FOR UPDATE", identifier).Scan(&otpAttempts)
	if result.Error != nil {
		return otpAttempts, result.Error
	}
	if result.RowsAffected == 0 {
		otpAttempts = models.OTPAttempts{
			Identifier: identifier,
			NumRequests: 0,
			RequestsBanExpiresAt: time.Now(),
			NumAttempts: 0,
			AttemptsBanExpiresAt: time.Now(),
		}
		createResult := tx.Create(&otpAttempts)
		if createResult.Error != nil {
			return otpAttempts, createResult.Error
		}
	}
	return otpAttempts, nil
}
