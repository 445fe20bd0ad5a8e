package routes

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/watukazi/authv1/dbhelper"
	"github.com/watukazi/authv1/middlewares"
	"github.com/watukazi/authv1/utils"
)

func UserRouter(u *mux.Router) {
	u.HandleFunc("/profile", middlewares.IsAccessTokenAuthorized(GetProfile)).Methods("GET")
}

func GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(middlewares.UserIDKey).(string)
	user, err := dbhelper.GetUserByID(userID)
	if err != nil {
		GenericAuthError(w, err, utils.GENERIC_PROFILE_ERROR)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id": user.ID,
		"phoneNumber": user.PhoneNumber,
		"email": user.Email,
		"fullName": user.FullName,
		"role": user.Role,
		"phoneVerified": user.PhoneVerified,
		"emailVerified": user.EmailVerified,
	})
}
