package notify

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
)

// headerPattern matches common mail header injection patterns in
// principal-controlled values.
var headerPattern = regexp.MustCompile(`(?i)\b(bcc|cc|to|from|subject|reply-to|x-[a-z0-9-]+)\s*:`)

// subject returns the mail subject for the notice.
func subject(n Notice) string {
	switch n.Kind {
	case KindDeletion:
		return "Old Access Key Pair Deleted"
	default:
		return "New Access Key Pair"
	}
}

// htmlBody renders the HTML mail body. The secret plaintext is passed in
// separately so it only ever lives on this call's stack.
func htmlBody(n Notice, secret string) string {
	var buf bytes.Buffer

	buf.WriteString("<html><head><title>")
	buf.WriteString(html.EscapeString(subject(n)))
	buf.WriteString("</title></head><body>")
	fmt.Fprintf(&buf, "Hey &#x1F44B; %s,<br/><br/>", html.EscapeString(n.Principal))

	switch n.Kind {
	case KindDeletion:
		buf.WriteString("An existing access key pair associated to your username has been deleted because it reached End-Of-Life.<br/><br/>")
		fmt.Fprintf(&buf, "Access Key: <strong>%s</strong><br/>", html.EscapeString(n.OldKeyID))
	default:
		buf.WriteString("A new access key pair has been generated for you. Please update the same wherever necessary.<br/><br/>")
		fmt.Fprintf(&buf, "Account: <strong>%s (%s)</strong><br/>", html.EscapeString(n.Account.ID), html.EscapeString(n.Account.Alias))
		fmt.Fprintf(&buf, "Access Key: <strong>%s</strong><br/>", html.EscapeString(n.NewKeyID))
		fmt.Fprintf(&buf, "Secret Access Key: <strong>%s</strong><br/>", html.EscapeString(secret))
		if n.Instructions != "" {
			fmt.Fprintf(&buf, "Instruction: %s<br/>", html.EscapeString(n.Instructions))
		}
		fmt.Fprintf(&buf, "<br/><strong>Note:</strong> Existing key pair <strong>%s</strong> will be deleted after %d days so please update the new key pair wherever required.<br/>",
			html.EscapeString(n.OldKeyID), n.GraceDays)
	}

	buf.WriteString("<br/>Thanks,<br/>Your Security Team</body></html>")
	return buf.String()
}

// textBody renders the plain-text alternative.
func textBody(n Notice, secret string) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Hey %s,\n\n", n.Principal)

	switch n.Kind {
	case KindDeletion:
		buf.WriteString("An existing access key pair associated to your username has been deleted because it reached End-Of-Life.\n\n")
		fmt.Fprintf(&buf, "Access Key: %s\n", n.OldKeyID)
	default:
		buf.WriteString("A new access key pair has been generated for you. Please update the same wherever necessary.\n\n")
		fmt.Fprintf(&buf, "Account: %s (%s)\n", n.Account.ID, n.Account.Alias)
		fmt.Fprintf(&buf, "Access Key: %s\n", n.NewKeyID)
		fmt.Fprintf(&buf, "Secret Access Key: %s\n", secret)
		if n.Instructions != "" {
			fmt.Fprintf(&buf, "Instruction: %s\n", n.Instructions)
		}
		fmt.Fprintf(&buf, "\nNote: Existing key pair %s will be deleted after %d days so please update the new key pair wherever required.\n",
			n.OldKeyID, n.GraceDays)
	}

	buf.WriteString("\nThanks,\nYour Security Team\n")
	return buf.String()
}

// sanitizeHeader strips newlines and header-like fragments from values
// that end up in mail headers.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = headerPattern.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}
