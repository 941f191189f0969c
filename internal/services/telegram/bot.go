// Package telegram turns Telegram bot messages into fire alerts. Operators
// either send "/fire <type> <intensity> <lat> <lng>" or share a Google Maps
// link and pick type and intensity from reply keyboards.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/LeonardoBeccarini/firelinx/internal/coordinates"
	"github.com/LeonardoBeccarini/firelinx/internal/model/entities"
	"github.com/LeonardoBeccarini/firelinx/internal/model/messages"
)

// StationID marks alerts that came in through the bot.
const StationID = "TG"

const sessionTTL = 15 * time.Minute

const (
	usage       = "Invalid format. Use `/fire B 3 22.5726 88.3639`"
	welcomeText = "*Welcome to FireLinx!*\n\nSend a Google Maps location link or use the format:\n`/fire B 3 22.5726 88.3639`"
	hintText    = "Please send a valid Google Maps link or use `/fire B 3 22.5726 88.3639`"
)

var (
	fireTypes   = []entities.FireType{entities.FireTypeA, entities.FireTypeB, entities.FireTypeC, entities.FireTypeD}
	intensities = []entities.FireIntensity{entities.Intensity1, entities.Intensity2, entities.Intensity3, entities.Intensity4}
)

// AlertPublisher is satisfied by *alert.Publisher.
type AlertPublisher interface {
	Publish(ctx context.Context, r entities.FireReport) (messages.AlertMessage, error)
}

type step int

const (
	stepType step = iota + 1
	stepIntensity
)

// session is the guided flow state of one chat.
type session struct {
	coords   entities.Coordinates
	step     step
	fireType entities.FireType
	expires  time.Time
}

type Bot struct {
	publisher AlertPublisher
	replier   Replier
	resolver  LinkResolver
	clock     clockwork.Clock
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[int64]*session
}

func NewBot(p AlertPublisher, r Replier, resolver LinkResolver, clock clockwork.Clock, logger *slog.Logger) *Bot {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		publisher: p,
		replier:   r,
		resolver:  resolver,
		clock:     clock,
		logger:    logger,
		sessions:  make(map[int64]*session),
	}
}

// HandleUpdate processes one update. Replies are best effort.
func (b *Bot) HandleUpdate(ctx context.Context, u Update) {
	if u.Message == nil {
		return
	}
	msg := u.Message
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	lower := strings.ToLower(text)

	switch {
	case lower == "/start" || lower == "start":
		b.reply(ctx, chatID, welcomeText, nil)
	case lower == "/help":
		b.reply(ctx, chatID, helpText(), nil)
	case strings.HasPrefix(lower, "/fire"):
		b.handleFireCommand(ctx, msg, text)
	case isMapsLink(text):
		b.handleMapsLink(ctx, chatID, text)
	default:
		if !b.advanceSession(ctx, msg, text) {
			b.reply(ctx, chatID, hintText, nil)
		}
	}
}

func helpText() string {
	var sb strings.Builder
	sb.WriteString("*Help Guide*\n\n")
	sb.WriteString("To report a fire:\n  1. Send a Google Maps link, or\n  2. Use `/fire <type> <intensity> <lat> <lng>`\n\nFire Types:\n")
	for _, t := range fireTypes {
		fmt.Fprintf(&sb, "`%s` - %s\n", t, t.Label())
	}
	sb.WriteString("Intensity: `1` (low) to `4` (severe)")
	return sb.String()
}

// ParseFireCommand parses "/fire <TYPE> <INTENSITY> <LAT> <LNG>".
func ParseFireCommand(text string) (entities.FireType, entities.FireIntensity, entities.Coordinates, error) {
	parts := strings.Fields(text)
	if len(parts) != 5 || !strings.EqualFold(parts[0], "/fire") {
		return "", "", entities.Coordinates{}, fmt.Errorf("expected 4 arguments, got %d", len(parts)-1)
	}
	ft := entities.FireType(strings.ToUpper(parts[1]))
	if !ft.Valid() {
		return "", "", entities.Coordinates{}, fmt.Errorf("%w: %q", entities.ErrInvalidFireType, parts[1])
	}
	fi := entities.FireIntensity(parts[2])
	if !fi.Valid() {
		return "", "", entities.Coordinates{}, fmt.Errorf("%w: %q", entities.ErrInvalidFireIntensity, parts[2])
	}
	lat, err := strconv.ParseFloat(parts[3], 64)
	if err != nil || !(entities.Coordinates{Lat: lat}).Valid() {
		return "", "", entities.Coordinates{}, fmt.Errorf("invalid latitude %q", parts[3])
	}
	lng, err := strconv.ParseFloat(parts[4], 64)
	if err != nil || !(entities.Coordinates{Lng: lng}).Valid() {
		return "", "", entities.Coordinates{}, fmt.Errorf("invalid longitude %q", parts[4])
	}
	return ft, fi, entities.Coordinates{Lat: lat, Lng: lng}, nil
}

func (b *Bot) handleFireCommand(ctx context.Context, msg *Message, text string) {
	ft, fi, c, err := ParseFireCommand(text)
	if err != nil {
		b.logger.Debug("invalid /fire command", "chat_id", msg.Chat.ID, "error", err)
		b.reply(ctx, msg.Chat.ID, usage, nil)
		return
	}
	b.sendAlert(ctx, msg, ft, fi, c)
}

func (b *Bot) handleMapsLink(ctx context.Context, chatID int64, text string) {
	link := firstURL(text)
	lat, lng, ok := ExtractCoordinates(link)
	if !ok && link != "" && b.resolver != nil {
		resolved, err := b.resolver.Resolve(ctx, link)
		if err != nil {
			b.logger.Warn("maps link not resolved", "chat_id", chatID, "error", err)
		} else {
			b.logger.Debug("maps link resolved", "chat_id", chatID, "url", resolved)
			lat, lng, ok = ExtractCoordinates(resolved)
		}
	}
	if !ok {
		b.reply(ctx, chatID, "Could not extract location from link.", nil)
		return
	}

	now := b.clock.Now()
	b.mu.Lock()
	b.sweepSessions(now)
	b.sessions[chatID] = &session{
		coords:  entities.Coordinates{Lat: lat, Lng: lng},
		step:    stepType,
		expires: now.Add(sessionTTL),
	}
	b.mu.Unlock()

	row := make([]string, 0, len(fireTypes))
	for _, t := range fireTypes {
		row = append(row, string(t))
	}
	b.reply(ctx, chatID, "Location received!\nChoose fire type:", [][]string{row})
}

// sweepSessions drops every expired flow. Caller holds b.mu.
func (b *Bot) sweepSessions(now time.Time) {
	for id, s := range b.sessions {
		if !now.Before(s.expires) {
			delete(b.sessions, id)
		}
	}
}

// advanceSession moves a guided flow one step; false if text did not fit it.
func (b *Bot) advanceSession(ctx context.Context, msg *Message, text string) bool {
	chatID := msg.Chat.ID
	now := b.clock.Now()

	b.mu.Lock()
	s, ok := b.sessions[chatID]
	if ok && !now.Before(s.expires) {
		delete(b.sessions, chatID)
		ok = false
	}
	if !ok {
		b.mu.Unlock()
		return false
	}

	switch s.step {
	case stepType:
		ft := entities.FireType(strings.ToUpper(text))
		if !ft.Valid() {
			b.mu.Unlock()
			return false
		}
		s.fireType = ft
		s.step = stepIntensity
		s.expires = now.Add(sessionTTL)
		b.mu.Unlock()

		row := make([]string, 0, len(intensities))
		for _, i := range intensities {
			row = append(row, string(i))
		}
		b.reply(ctx, chatID, "Now choose fire intensity:", [][]string{row})
		return true

	case stepIntensity:
		fi := entities.FireIntensity(text)
		if !fi.Valid() {
			b.mu.Unlock()
			return false
		}
		ft, c := s.fireType, s.coords
		b.mu.Unlock()
		b.sendAlert(ctx, msg, ft, fi, c)
		return true
	}
	b.mu.Unlock()
	return false
}

// ReportFor builds the alert report for a Telegram sender.
func ReportFor(from *User, ft entities.FireType, fi entities.FireIntensity, c entities.Coordinates, ts coordinates.Timestamp) entities.FireReport {
	r := entities.NewFireReport(ts.Date, ts.Time)
	r.FireType = ft
	r.FireIntensity = fi
	r.Verified = true
	r.StnID = StationID
	r.User = displayName(from)
	r.UserID = shortID(from)
	lat, lng := coordinates.FormatDDM(c)
	return r.WithLocation(lat, lng)
}

func displayName(u *User) string {
	switch {
	case u == nil:
		return "Unknown"
	case u.Username != "":
		return u.Username
	case u.FirstName != "":
		return u.FirstName
	}
	return "Unknown"
}

// shortID keeps the last five digits of the sender id.
func shortID(u *User) string {
	if u == nil {
		return "0"
	}
	id := strconv.FormatInt(u.ID, 10)
	if len(id) > 5 {
		id = id[len(id)-5:]
	}
	return id
}

func (b *Bot) sendAlert(ctx context.Context, msg *Message, ft entities.FireType, fi entities.FireIntensity, c entities.Coordinates) {
	chatID := msg.Chat.ID
	report := ReportFor(msg.From, ft, fi, c, coordinates.CurrentTimestamp(b.clock))

	if _, err := b.publisher.Publish(ctx, report); err != nil {
		b.logger.Warn("telegram alert not published", "chat_id", chatID, "error", err)
		b.reply(ctx, chatID, "Failed to send alert: "+err.Error(), nil)
		return
	}

	b.mu.Lock()
	delete(b.sessions, chatID)
	b.mu.Unlock()

	b.reply(ctx, chatID, fmt.Sprintf("*Fire alert sent!*\nType %s - %s\n*Intensity*: %s\n*Location*: %s, %s",
		ft, ft.Label(), fi, report.Latitude, report.Longitude), nil)
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string, keyboard [][]string) {
	if b.replier == nil {
		return
	}
	if err := b.replier.SendMessage(ctx, chatID, text, keyboard); err != nil {
		b.logger.Warn("telegram reply failed", "chat_id", chatID, "error", err)
	}
}
