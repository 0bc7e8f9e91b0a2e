package mailer

import "context"

// Sender delivers a single email. Client and LogOnly both satisfy it.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Notifier composes the registration emails on top of a Sender.
type Notifier struct {
	sender Sender
}

func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

func (n *Notifier) SendRegistrationReceived(ctx context.Context, to, teamID, teamName, captainName string) error {
	subject := "Registration received: " + teamName + " (" + teamID + ")"
	return n.sender.Send(ctx, to, subject, RegistrationReceivedBody(teamID, teamName, captainName))
}

func (n *Notifier) SendRegistrationApproved(ctx context.Context, to, teamID, teamName, captainName string) error {
	subject := "Registration approved: " + teamName + " (" + teamID + ")"
	return n.sender.Send(ctx, to, subject, RegistrationApprovedBody(teamID, teamName, captainName))
}
