package email

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

type SMTPNotifier struct {
	host   string
	port   int
	from   string
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, logger: logger}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, userEmail, jobID, identifier, errorMsg string) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)

	msg := buildFailureMessage(n.from, userEmail, jobID, identifier, errorMsg)

	err := smtp.SendMail(addr, nil, n.from, []string{userEmail}, []byte(msg))
	if err != nil {
		n.logger.Error("failed to send failure notification email",
			zap.String("to", userEmail),
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent",
		zap.String("to", userEmail),
		zap.String("job_id", jobID),
	)
	return nil
}

func buildFailureMessage(from, to, jobID, identifier, errorMsg string) string {
	if identifier == "" {
		identifier = "(unnamed upload)"
	}
	subject := fmt.Sprintf("FootfallFinder - Video Analysis Failed [Job %s]", jobID)
	body := fmt.Sprintf(
		"Hello,\r\n\r\n"+
			"We could not analyze your video.\r\n\r\n"+
			"Job ID: %s\r\n"+
			"Video: %s\r\n"+
			"Reason: %s\r\n\r\n"+
			"Please upload the video again to retry.\r\n\r\n"+
			"-- FootfallFinder",
		jobID, identifier, errorMsg,
	)

	return fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", from, to, subject, body)
}
