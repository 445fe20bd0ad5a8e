package utils

// environment variables
const DBUSER = "DBUSER"
const DBPASS = "DBPASS"
const DBNAME = "DBNAME"
const JWT_SECRET_KEY_ACCESS = "JWT_SECRET_KEY_ACCESS"
const JWT_SECRET_KEY_ACCESS_OLD = "JWT_SECRET_KEY_ACCESS_OLD"
const JWT_SECRET_KEY_REFRESH = "JWT_SECRET_KEY_REFRESH"
const JWT_SECRET_KEY_REFRESH_OLD = "JWT_SECRET_KEY_REFRESH_OLD"

// token types
const ACCESS_TYPE = "access"
const REFRESH_TYPE = "refresh"

// roles
const ROLE_CLIENT = "client"
const ROLE_PROVIDER = "provider"

// error messages
const GORM_ERR_CODE_DUPLICATE_KEY = "Error 1062"
const GENERIC_REGISTER_ERROR = "We had some trouble signing you up. Please try again!"
const PHONE_TAKEN_REGISTER_ERROR = "Someone might have signed up with that phone number before. Please try logging in!"
const EMAIL_TAKEN_REGISTER_ERROR = "Someone might have signed up with that email before. Please try logging in!"
const GENERIC_LOGIN_ERROR = "We had some trouble logging you in. Please try again!"
const GENERIC_SEND_OTP_ERROR = "We had some trouble sending your verification code. Please try again!"
const GENERIC_VERIFY_OTP_ERROR = "We had some trouble verifying your code. Please try again!"
const GENERIC_PASSWORD_RESET_ERROR = "We had some trouble resetting your password. Please try again!"
const GENERIC_PROFILE_ERROR = "We had some trouble loading your profile. Please try again!"
const MISSING_REQUEST_DATA = "Some required information was missing from the request."
const JWT_TOKEN_PARSING_ERROR = "Your session looks invalid. Please log in again."
const JWT_TOKEN_EXPIRED_ERROR = "Your session has expired. Please log in again."
const SERVER_DOWN = "The server hit a snag. Please try again shortly."

// attempt caps
const MAX_NUM_LOGIN_ATTEMPTS = 3
const MAX_NUM_OTP_REQUESTS = 10
const MAX_NUM_OTP_ATTEMPTS = 3

// token and code lifetimes
const REFRESH_TOKEN_DURATION = 7 // days
const ACCESS_TOKEN_DURATION = 15 // minutes
const CODE_DURATION = 20 // minutes

// ban durations (minutes)
const LOGIN_BAN_DURATION = 10
const OTP_REQUEST_BAN_DURATION = 10
const OTP_ATTEMPT_BAN_DURATION = 10
