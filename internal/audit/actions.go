package audit

type Action string

const (
	ActionRegister            Action = "REGISTER"
	ActionLogin               Action = "LOGIN"
	ActionRefreshToken        Action = "REFRESH_TOKEN"
	ActionLogout              Action = "LOGOUT"
	ActionForgotPassword      Action = "FORGOT_PASSWORD"
	ActionResetPassword       Action = "RESET_PASSWORD"
	ActionChangePassword      Action = "CHANGE_PASSWORD"
	ActionRequestVerification Action = "REQUEST_VERIFICATION"
	ActionVerifyEmail         Action = "VERIFY_EMAIL"
	ActionGetUserInfo         Action = "GET_USER_INFO"
	ActionUpdateProfile       Action = "UPDATE_PROFILE"
	ActionDeactivateUser      Action = "DEACTIVATE_USER"
	ActionActivateUser        Action = "ACTIVATE_USER"
	ActionListAuditLogs       Action = "LIST_AUDIT_LOGS"

	// Recorded as-is by the access guard, without an outcome suffix.
	ActionUnauthorizedAccess Action = "UNAUTHORIZED_ACCESS_ATTEMPT"
)

func (a Action) Success() string { return string(a) + "_SUCCESS" }

func (a Action) Failed() string { return string(a) + "_FAILED" }

const (
	EntityUser    = "USER"
	EntitySession = "SESSION"
	EntityRoute   = "ROUTE"
	EntityAudit   = "AUDIT_LOG"
)
