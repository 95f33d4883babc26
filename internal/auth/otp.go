package auth

import (
	"context"

	"github.com/shopzone/shopzone-backend/pkg/logger"
)

// OTPSender delivers a one-time code to the user's phone.
type OTPSender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// LogOTPSender writes codes to the application log. It is the development
// transport; production wires a real SMS provider behind the same port.
type LogOTPSender struct {
	Logg *logger.Logger
}

func (s LogOTPSender) SendOTP(ctx context.Context, phone, code string) error {
	if s.Logg == nil {
		return nil
	}
	ctx = s.Logg.WithFields(ctx, map[string]any{
		"phone": phone,
		"code":  code,
	})
	s.Logg.Info(ctx, "otp.send")
	return nil
}
