package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/arenvik/mailpilot/internal/models"
)

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.store.User() == nil {
		return m.renderLogin()
	}

	sections := []string{
		m.renderHeader(),
		m.viewport.View(),
	}

	if m.gate.Pending() != nil {
		sections = append(sections, m.renderConfirm())
	} else if m.showCommands {
		sections = append(sections, m.renderCommands())
	} else {
		sections = append(sections, m.renderInput())
	}

	sections = append(sections, m.renderFooter())
	return strings.Join(sections, "\n")
}

func (m Model) renderLogin() string {
	title := titleStyle.Render("Mailpilot — AI Email Assistant")
	sub := headerStyle.Render("Intelligent email management in your terminal")

	var action string
	switch {
	case m.loggingIn:
		action = m.spinner.View() + " Waiting for browser sign-in..."
	case m.loginErr != "":
		action = errorStyle.Render("Login failed: "+m.loginErr) + "\n\n" +
			"Press enter to retry, q to quit."
	default:
		action = "Press enter to sign in with Google, q to quit."
	}

	body := lipgloss.JoinVertical(lipgloss.Center, title, "", sub, "", action)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
}

func (m Model) renderHeader() string {
	user := m.store.User()
	left := titleStyle.Render("Mailpilot")
	right := ""
	if user != nil {
		right = headerStyle.Render(user.Email)
	}
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderTranscript() string {
	msgs := m.store.Messages()
	if len(msgs) == 0 {
		return dimStyle.Render("No messages yet. Say hello, or try \"Show me my last 5 emails\".")
	}

	var b strings.Builder
	for _, msg := range msgs {
		switch msg.Role {
		case models.RoleUser:
			b.WriteString(userMsgStyle.Render("You") + " " + msg.Content)
		case models.RoleAssistant:
			label := assistantMsgStyle.Render("Assistant")
			content := msg.Content
			if strings.HasPrefix(content, "Error: ") {
				content = errorStyle.Render(content)
			}
			b.WriteString(label + " " + content)
			for i, email := range msg.Metadata.Emails {
				b.WriteString("\n" + m.renderEmailCard(i+1, email))
			}
		}
		b.WriteString("\n\n")
	}

	if m.sending {
		b.WriteString(m.spinner.View() + dimStyle.Render(" Assistant is thinking..."))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderEmailCard(index int, email models.EmailRecord) string {
	marker := "  "
	if email.Unread() {
		marker = unreadStyle.Render("● ")
	}

	head := fmt.Sprintf("%s[%d] %s", marker, index, email.Subject)
	from := dimStyle.Render(fmt.Sprintf("%s — %s", email.From, email.Date))

	lines := []string{head, from}
	if email.Summary != "" {
		lines = append(lines, email.Summary)
	} else if email.Snippet != "" {
		lines = append(lines, dimStyle.Render(email.Snippet))
	}
	if len(email.Labels) > 0 {
		lines = append(lines, labelStyle.Render(strings.Join(email.Labels, " ")))
	}

	w := m.width - 6
	if w < 20 {
		w = 20
	}
	return cardStyle.Width(w).Render(strings.Join(lines, "\n"))
}

func (m Model) renderConfirm() string {
	action := m.gate.Pending()
	if action == nil {
		return ""
	}

	title := "Send Reply?"
	confirmLabel := "Send"
	if action.Kind == models.ActionDelete {
		title = "Delete Email?"
		confirmLabel = "Delete"
	}

	choices := []string{confirmLabel, "Cancel"}
	var btns []string
	for i, c := range choices {
		if i == m.confirmChoice {
			btns = append(btns, selectedChoiceStyle.Render(c))
		} else {
			btns = append(btns, unselectedChoiceStyle.Render(c))
		}
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		confirmTitleStyle.Render("△ "+title),
		action.Prompt,
		"",
		strings.Join(btns, "  ")+"   "+dimStyle.Render("←→ select  enter confirm  esc cancel"),
	)
	return cardStyle.Width(m.width-4).Render(body)
}

func (m Model) renderCommands() string {
	lines := []string{
		confirmTitleStyle.Render("AI Email Assistant Commands"),
		"",
		labelStyle.Render("Fetch & Read") + "   \"Show me my last 5 emails\" · \"Get unread emails\" · \"Emails from john@example.com\"",
		labelStyle.Render("Reply") + "          \"Reply to email #1\" · \"Reply to John saying thanks\" · /reply <n>",
		labelStyle.Render("Delete") + "         \"Delete email #2\" · /delete <n>",
		labelStyle.Render("Smart") + "          \"Categorize my emails\" · \"Give me today's digest\" · \"Show urgent emails\"",
		"",
		dimStyle.Render("Local: /help  /logout  ·  press esc to close"),
	}
	return cardStyle.Width(m.width - 4).Render(strings.Join(lines, "\n"))
}

func (m Model) renderInput() string {
	line := m.input.View()
	if m.status != "" {
		line += "\n" + errorStyle.Render(m.status)
	}
	return line
}

func (m Model) renderFooter() string {
	hints := "enter send · f1 commands · ctrl+l logout · esc quit"
	if err := m.store.Err(); err != "" {
		return footerStyle.Render(hints) + "  " + errorStyle.Render("⚠ "+err)
	}
	return footerStyle.Render(hints)
}
