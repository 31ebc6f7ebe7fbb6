package utils

import (
	"fmt"
	"html"
	"time"
)

// VerificationEmail renders the email that carries the verification link.
func VerificationEmail(name, link string, ttl time.Duration) (subject, body string) {
	subject = "Confirme seu email"
	body = fmt.Sprintf(`
		<p>Olá %s,</p>
		<p>Para ativar sua conta, confirme seu email clicando no link abaixo:</p>
		<p><a href="%s">Confirmar email</a></p>
		<p>O link expira em %d horas. Se você não criou uma conta, ignore esta mensagem.</p>
		<p>Equipe Psicanálise Online</p>
	`, html.EscapeString(name), html.EscapeString(link), int(ttl.Hours()))
	return subject, body
}

// ReminderEmail renders the reminder sent about an hour before a session.
func ReminderEmail(clientName, professionalName, sessionType, when string) (subject, body string) {
	subject = "Lembrete: sua sessão começa em breve"
	body = fmt.Sprintf(`
		<p>Olá %s,</p>
		<p>Este é um lembrete da sua sessão agendada para daqui a uma hora.</p>
		<ul>
			<li><strong>Profissional:</strong> %s</li>
			<li><strong>Modalidade:</strong> %s</li>
			<li><strong>Horário:</strong> %s</li>
		</ul>
		<p>Acesse a sala alguns minutos antes do início.</p>
		<p>Equipe Psicanálise Online</p>
	`, html.EscapeString(clientName), html.EscapeString(professionalName), html.EscapeString(sessionType), when)
	return subject, body
}
