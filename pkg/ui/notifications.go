package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

const notificationApp = "IdleData"

// NotificationSender raises a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// CommandSender raises notifications by running a platform tool. Args
// builds the tool's arguments for one notification.
type CommandSender struct {
	Name string
	Args func(title, message string) []string
}

func (c *CommandSender) Send(title, message string) error {
	return exec.Command(c.Name, c.Args(title, message)...).Run()
}

// PlatformSender returns the sender for goos, or nil when goos has no
// notification tool
func PlatformSender(goos string) NotificationSender {
	switch goos {
	case "linux":
		return &CommandSender{Name: "notify-send", Args: func(title, message string) []string {
			return []string{"--app-name", notificationApp, title, message}
		}}
	case "darwin":
		return &CommandSender{Name: "osascript", Args: func(title, message string) []string {
			script := fmt.Sprintf("display notification %s with title %s",
				appleScriptString(message), appleScriptString(title))
			return []string{"-e", script}
		}}
	case "windows":
		return &CommandSender{Name: "powershell", Args: func(title, message string) []string {
			return []string{"-NoProfile", "-NonInteractive", "-Command", toastScript(title, message)}
		}}
	}
	return nil
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func toastScript(title, message string) string {
	escape := func(s string) string {
		r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "'", "''")
		return r.Replace(s)
	}
	return fmt.Sprintf(`[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
$doc.LoadXml('<toast><visual><binding template="ToastText02"><text id="1">%s</text><text id="2">%s</text></binding></visual></toast>')
[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier('%s').Show([Windows.UI.Notifications.ToastNotification]::new($doc))`,
		escape(title), escape(message), notificationApp)
}

// Notifier announces the end of a long stage: a status line on the
// console and, where the platform supports it, a desktop notification.
// Send failures are ignored.
type Notifier struct {
	sender NotificationSender
	out    io.Writer
}

// NewNotifierWithSender creates a Notifier over a specific sender; nil only prints
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender, out: os.Stdout}
}

// NewNotifier creates a Notifier for the running platform
func NewNotifier() *Notifier {
	return NewNotifierWithSender(PlatformSender(runtime.GOOS))
}

// SetOutput redirects the console line
func (n *Notifier) SetOutput(w io.Writer) {
	n.out = w
}

func (n *Notifier) notify(color func(string) string, title, message string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", color(title), color(message))
	if n.sender != nil {
		_ = n.sender.Send(title, message)
	}
}

// SendError announces a failed stage
func (n *Notifier) SendError(title, message string) {
	n.notify(Red, title, message)
}

// SendSuccess announces a finished stage
func (n *Notifier) SendSuccess(title, message string) {
	n.notify(Green, title, message)
}
