package email

import (
	"fmt"
	"net/smtp"
)

// smtpServer stores the address of the SMTP server which is used to send emails.
var smtpServer string

// auth holds the authentication data needed to connect to the SMTP server.
// It is initialized by the smtp.PlainAuth function, which takes the username and password of the email sender.
var auth smtp.Auth

// fromEmail stores the email address of the sender. This is used as the "From" address in the emails that are sent.
var fromEmail string

// InitEmailService initializes the email service by establishing an SMTP
// connection to the specified email server.
// It accepts two arguments:
// - sender: the email address used as the "From" address in the emails that are sent.
// - password: the password of the sender's email account.
//
// The function dials the SMTP server once to check that the connection works.
// If successful in establishing a connection, the function returns true.
// If an error occurs during any step of the process, it returns false and the error.
func InitEmailService(sender, password string) (bool, error) {
	smtpServer = "smtp.gmail.com:587"
	fromEmail = sender

	auth = smtp.PlainAuth(
		"",
		sender,
		password,
		"smtp.gmail.com",
	)

	c, err := smtp.Dial(smtpServer)
	if err != nil {
		return false, fmt.Errorf("cannot connect to the SMTP server: %v", err)
	}

	err = c.Close()
	if err != nil {
		return false, fmt.Errorf("cannot close the SMTP connection: %v", err)
	}

	return true, nil
}

// SendWelcome sends a welcome email to a newly registered user.
// It accepts two arguments:
// - to: the email address of the recipient.
// - name: the display name of the new user.
//
// The function returns an error if there was a problem with any step of the process.
func SendWelcome(to, name string) error {
	headers := make(map[string]string)
	headers["From"] = fromEmail
	headers["To"] = to
	headers["Subject"] = "Welcome to HabitLoop"
	headers["MIME-version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=\"UTF-8\""

	message := ""
	for k, v := range headers {
		message += fmt.Sprintf("%s: %s\r\n", k, v)
	}

	body := `
	<html>
		<head>
			<style>
				body {
					font-family: sans-serif;
					margin: 0;
					padding: 0;
				}
				.container {
					max-width: 600px;
					margin: 0 auto;
					padding: 10px;
					border-radius: 4px;
				}
				p {
					line-height: 1.6;
				}
			</style>
		</head>
		<body>
			<div class="container">
				<h1>Hello ` + name + `,</h1>
				<p>Your account is ready. Add your first habit and start checking in daily to build a streak.</p>
			</div>
		</body>
	</html>
	`
	message += "\r\n" + body

	err := smtp.SendMail(
		smtpServer,
		auth,
		fromEmail,
		[]string{to},
		[]byte(message),
	)

	if err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}

	return nil
}
