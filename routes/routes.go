package routes

import (
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

var validate *validator.Validate

func CreateRoutes(r *mux.Router) {
	validate = validator.New()
	s := r.PathPrefix("/auth").Subrouter()
	AuthRouter(s)
	u := r.PathPrefix("/users").Subrouter()
	UserRouter(u)
}
