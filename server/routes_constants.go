package server

import "github.com/jrsteele09/prompting-recipe/guard"

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Views
	RouteHome     = guard.HomeRoute
	RouteLogin    = guard.LoginRoute
	RouteRegister = "/register"
	RouteProfile  = "/profile"

	// Auth Routes - Login & Logout
	RouteAuthLogin    = "/auth/login"
	RouteAuthRegister = "/auth/register"
	RouteAuthLogout   = "/auth/logout"

	// Auth Routes - Social sign-in
	RouteCallback      = "/auth/callback"
	RouteOAuthProvider = "/auth/{provider}"

	// Auth Routes - Email Verification
	RouteSendVerification  = "/auth/email/send-verification"
	RouteCheckVerification = "/auth/email/check-verification"

	// API Routes
	RouteAPISession          = "/api/session"
	RouteAPIValidatePassword = "/api/validate-password"
	RouteHealth              = "/healthz"

	// Static Asset Routes (patterns)
	RouteStaticCSS = "/css/{file}"
)
