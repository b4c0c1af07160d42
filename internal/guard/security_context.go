package guard

import (
	"context"
	"strconv"

	"github.com/stemsi/exstem-cms/internal/model"
	"github.com/stemsi/exstem-cms/internal/response"
)

const SecurityContextGuardName = "security_context"

// SecurityContextValidator checks that the user id the command acts for is the
// one proven by the caller's token, catching tampered path parameters and
// tokens used to act for another user.
type SecurityContextValidator struct {
	audit AuditSink
}

func NewSecurityContextValidator(audit AuditSink) *SecurityContextValidator {
	if audit == nil {
		audit = NopAuditSink{}
	}
	return &SecurityContextValidator{audit: audit}
}

func (v *SecurityContextValidator) Name() string { return SecurityContextGuardName }

func (v *SecurityContextValidator) Validate(ctx context.Context, req *Request) error {
	if err := requireCommand(req); err != nil {
		return err
	}
	cmdUser := req.Command.UserID

	if !req.Identity.Present {
		v.audit.EmitAsync(model.NewSecurityEvent(
			model.EventUnauthorizedAccessAttempt, model.SeverityWarning, cmdUser, req.SessionID,
			map[string]string{
				"reason":   "MISSING_TOKEN",
				"clientIp": req.ClientIP,
			},
		))
		return fail(v.Name(), response.ErrUnauthorizedAccess, "no authenticated identity on request")
	}

	if req.PathUserID != 0 && req.PathUserID != cmdUser {
		v.audit.EmitAsync(model.NewSecurityEvent(
			model.EventPathParameterManipulation, model.SeverityCritical, req.Identity.UserID, req.SessionID,
			map[string]string{
				"pathUserId":    strconv.FormatInt(req.PathUserID, 10),
				"commandUserId": strconv.FormatInt(cmdUser, 10),
				"clientIp":      req.ClientIP,
			},
		))
		return fail(v.Name(), response.ErrUnauthorizedAccess,
			"path user %d does not match command user %d", req.PathUserID, cmdUser)
	}

	if req.Identity.UserID != cmdUser {
		v.audit.EmitAsync(model.NewSecurityEvent(
			model.EventTokenPrivilegeEscalation, model.SeverityCritical, req.Identity.UserID, req.SessionID,
			map[string]string{
				"tokenUserId":   strconv.FormatInt(req.Identity.UserID, 10),
				"commandUserId": strconv.FormatInt(cmdUser, 10),
				"clientIp":      req.ClientIP,
			},
		))
		return fail(v.Name(), response.ErrSessionSecurityViolation,
			"token subject %d may not act for user %d", req.Identity.UserID, cmdUser)
	}

	if req.Session != nil && req.Session.UserID != req.Identity.UserID {
		v.audit.EmitAsync(model.NewSecurityEvent(
			model.EventTokenPrivilegeEscalation, model.SeverityCritical, req.Identity.UserID, req.SessionID,
			map[string]string{
				"tokenUserId":   strconv.FormatInt(req.Identity.UserID, 10),
				"sessionUserId": strconv.FormatInt(req.Session.UserID, 10),
				"clientIp":      req.ClientIP,
			},
		))
		return fail(v.Name(), response.ErrSessionSecurityViolation,
			"session %s belongs to another user", req.Session.SessionID)
	}

	return nil
}
