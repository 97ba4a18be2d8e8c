package emailsvc

import (
	"fmt"
	"log"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/edumvp/backend/core"
)

// SentMessages records everything sent through the console service; tests
// inspect it. Guarded by mu.
var (
	SentMessages = make([]core.EmailMessage, 0)
	mu           sync.Mutex
)

type consoleService struct {
	from          mail.Address
	subjPrefix    string
	disableOutput bool
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService(conf *core.Config) core.EmailService {
	return &consoleService{
		from:       conf.DefaultFromEmail,
		subjPrefix: "[" + conf.AppName + "] ",
	}
}

func (svc consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.sendMessage(msg)
	}
}

func (svc consoleService) sendMessage(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		// mail must never take the calling flow down with it
		log.Printf("%+v", errors.Wrap(err, "rendering email"))
		return
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return
	}
	if !svc.disableOutput {
		log.Println(svc.dump(*msg))
	}
	mu.Lock()
	SentMessages = append(SentMessages, *msg)
	mu.Unlock()
}

// dump renders a readable approximation of the wire message.
func (svc consoleService) dump(msg core.EmailMessage) string {
	var b strings.Builder
	header := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\r\n", name, value)
		}
	}
	header("From", svc.from.String())
	header("Date", time.Now().Format(time.RFC1123Z))
	header("Subject", svc.subjPrefix+msg.Subject)
	header("To", joinAddresses(msg.To))
	header("CC", joinAddresses(msg.Cc))
	header("BCC", joinAddresses(msg.Bcc))

	fmt.Fprintf(&b, "\r\n%s\r\n", msg.TextContent)
	if msg.HTMLContent != "" {
		fmt.Fprintf(&b, "\r\n--- html alternative ---\r\n%s\r\n", msg.HTMLContent)
	}
	return b.String()
}

func joinAddresses(addrs []mail.Address) string {
	strs := make([]string, len(addrs))
	for i, a := range addrs {
		strs[i] = a.String()
	}
	return strings.Join(strs, ", ")
}

type consoleServiceMock struct {
	consoleService
}

// NewConsoleServiceMock sends synchronously and skips console output so
// tests can assert on SentMessages right after the call.
func NewConsoleServiceMock(conf *core.Config) core.EmailService {
	return &consoleServiceMock{
		consoleService: consoleService{
			from:          conf.DefaultFromEmail,
			subjPrefix:    "[" + conf.AppName + "] ",
			disableOutput: true,
		},
	}
}

func (svc *consoleServiceMock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		svc.sendMessage(msg)
	}
}
