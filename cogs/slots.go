package cogs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"slots-panel/config"
	"slots-panel/games/slots"
	"slots-panel/gateway"
	"slots-panel/store"
	"slots-panel/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// interaction tokens accept followups for 15 minutes
const interactionTTL = 14 * time.Minute

const (
	amountInputID = "amount"
	sweepInterval = 90 * time.Second
)

// Panel is one user's live slot machine message
type Panel struct {
	OwnerID    string
	ChannelID  string
	MessageID  string
	Controller *slots.Controller

	session *discordgo.Session
	editor  utils.MessageEditor
	writer  *utils.FrameWriter
	live    *gateway.LiveStatus

	mu           sync.Mutex
	lastAction   *discordgo.InteractionCreate
	lastActionAt time.Time
	lastSeen     time.Time
}

// Render implements slots.Surface
func (p *Panel) Render(f slots.Frame) {
	footer := ""
	if p.live != nil {
		footer = p.live.Snapshot().Label()
	}
	p.writer.Push(utils.MessageFrame{
		Embed:      utils.OptimizeEmbedPayload(PanelEmbed(f, footer)),
		Components: PanelComponents(f),
	})
}

// Notify implements slots.Surface. The notice goes to the owner as an
// ephemeral followup when a recent interaction exists, else to the channel.
func (p *Panel) Notify(message string) {
	p.mu.Lock()
	i, at := p.lastAction, p.lastActionAt
	p.mu.Unlock()

	go func() {
		if i != nil && time.Since(at) < interactionTTL {
			if err := utils.TryEphemeralFollowup(p.session, i, message); err == nil {
				return
			}
		}
		if _, err := p.session.ChannelMessageSend(p.ChannelID, fmt.Sprintf("<@%s> %s", p.OwnerID, message)); err != nil {
			utils.BotLogf("SLOTS", "notify %s failed: %v", p.OwnerID, err)
		}
	}()
}

func (p *Panel) touch(i *discordgo.InteractionCreate) {
	now := time.Now()
	p.mu.Lock()
	p.lastAction = i
	p.lastActionAt = now
	p.lastSeen = now
	p.mu.Unlock()
}

func (p *Panel) seen(now time.Time) {
	p.mu.Lock()
	p.lastSeen = now
	p.mu.Unlock()
}

func (p *Panel) idleSince() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen
}

// SlotsDeps wires a SlotsCog
type SlotsDeps struct {
	Gateway slots.Gateway
	Store   store.PanelStore
	Tuning  config.Tuning
	Live    *gateway.LiveStatus
	Logger  *zap.Logger
}

// SlotsCog owns every open panel
type SlotsCog struct {
	deps SlotsDeps
	log  *zap.Logger

	mu        sync.RWMutex
	panels    map[string]*Panel // by owner
	byMessage map[string]string // message id -> owner

	sweeper *time.Ticker
	done    chan struct{}
	once    sync.Once
}

func NewSlotsCog(deps SlotsDeps) *SlotsCog {
	if deps.Logger == nil {
		deps.Logger = utils.Logger()
	}
	if deps.Store == nil {
		deps.Store = store.NewMemoryStore()
	}
	if deps.Tuning.IdleTimeout <= 0 {
		deps.Tuning.IdleTimeout = config.DefaultIdleTimeout
	}
	c := &SlotsCog{
		deps:      deps,
		log:       deps.Logger.Named("slots"),
		panels:    make(map[string]*Panel),
		byMessage: make(map[string]string),
		sweeper:   time.NewTicker(sweepInterval),
		done:      make(chan struct{}),
	}
	go c.sweepRoutine()
	return c
}

// ControllerOptions maps tuning onto controller options
func ControllerOptions(t config.Tuning, log *zap.Logger) slots.Options {
	return slots.Options{
		Ladder:         t.BetLadder,
		TickInterval:   t.Animation.TickInterval,
		TickCount:      t.Animation.Ticks,
		RequestTimeout: t.RequestTimeout,
		HistorySize:    t.HistorySize,
		PayoutRows:     t.PayoutRows,
		Logger:         log,
	}
}

// RegisterSlotsCommand config
func RegisterSlotsCommand() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "slots",
		Description: "Open your slot machine panel",
	}
}

// HandleCommand handles /slots by opening a fresh panel for the caller
func (c *SlotsCog) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ownerID := utils.InteractionUserID(i)
	if ownerID == "" {
		utils.SendInteractionResponse(s, i, utils.ErrorEmbed("Slots", "Invalid user data"), nil, true)
		return
	}

	loading := utils.CreateBrandedEmbed(panelTitle, "Loading the machine...", utils.ColorInfo)
	if err := utils.SendInteractionResponse(s, i, loading, nil, false); err != nil {
		c.log.Warn("respond to /slots failed", zap.Error(err))
		return
	}
	msg, err := s.InteractionResponse(i.Interaction)
	if err != nil {
		c.log.Warn("fetch panel message failed", zap.Error(err))
		return
	}

	go c.open(s, i, ownerID, i.GuildID, msg.ChannelID, msg.ID)
}

func (c *SlotsCog) open(s *discordgo.Session, i *discordgo.InteractionCreate, ownerID, guildID, channelID, messageID string) {
	ctx := context.Background()
	c.closePrevious(ctx, s, ownerID)

	limiter := utils.NewRateLimiter(c.deps.Tuning.EditsPerSecond)
	p := &Panel{
		OwnerID:   ownerID,
		ChannelID: channelID,
		MessageID: messageID,
		session:   s,
		editor:    s,
		writer:    utils.NewFrameWriter(s, channelID, messageID, limiter),
		live:      c.deps.Live,
	}
	p.touch(i)
	p.Controller = slots.NewController(c.deps.Gateway, p, ControllerOptions(c.deps.Tuning, c.log.With(zap.String("user_id", ownerID))))
	c.track(p)

	if err := p.Controller.Load(ctx); err != nil {
		c.log.Warn("panel load failed", zap.String("user_id", ownerID), zap.Error(err))
		c.retire(p, utils.ErrorEmbed("Slots", "The slot machine is unavailable right now. Try `/slots` again later."))
		return
	}

	if err := c.deps.Store.SavePanel(ctx, store.Panel{UserID: ownerID, GuildID: guildID, ChannelID: channelID, MessageID: messageID}); err != nil {
		c.log.Warn("save panel failed", zap.String("user_id", ownerID), zap.Error(err))
	}
	c.log.Info("panel opened", zap.String("user_id", ownerID), zap.String("message_id", messageID))
}

// track registers a panel and forgets it once its writer stops
func (c *SlotsCog) track(p *Panel) {
	c.mu.Lock()
	c.panels[p.OwnerID] = p
	c.byMessage[p.MessageID] = p.OwnerID
	c.mu.Unlock()
	utils.PanelsActive.Inc()

	go func() {
		<-p.writer.Done()
		if c.untrack(p) {
			// the message is gone; only forget the placement if it is still ours
			ctx := context.Background()
			if stored, err := c.deps.Store.GetPanel(ctx, p.OwnerID); err == nil && stored.MessageID == p.MessageID {
				c.deps.Store.DeletePanel(ctx, p.OwnerID)
			}
		}
		utils.PanelsActive.Dec()
	}()
}

// untrack reports whether p was still the owner's current panel
func (c *SlotsCog) untrack(p *Panel) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byMessage[p.MessageID] == p.OwnerID {
		delete(c.byMessage, p.MessageID)
	}
	if c.panels[p.OwnerID] != p {
		return false
	}
	delete(c.panels, p.OwnerID)
	return true
}

// retire stops a panel and replaces its message with embed
func (c *SlotsCog) retire(p *Panel, embed *discordgo.MessageEmbed) {
	c.untrack(p)
	p.Controller.Cancel()
	p.writer.Close()

	embeds := []*discordgo.MessageEmbed{embed}
	components := []discordgo.MessageComponent{}
	if _, err := p.editor.ChannelMessageEditComplex(&discordgo.MessageEdit{ID: p.MessageID, Channel: p.ChannelID, Embeds: &embeds, Components: &components}); err != nil {
		c.log.Debug("retire panel edit failed", zap.String("message_id", p.MessageID), zap.Error(err))
	}
}

// closePrevious retires the owner's earlier panel, live or persisted
func (c *SlotsCog) closePrevious(ctx context.Context, s *discordgo.Session, ownerID string) {
	if old := c.panelForOwner(ownerID); old != nil {
		c.retire(old, ClosedPanelEmbed())
	}

	prev, err := c.deps.Store.GetPanel(ctx, ownerID)
	if errors.Is(err, store.ErrPanelNotFound) {
		return
	}
	if err != nil {
		c.log.Warn("lookup previous panel failed", zap.String("user_id", ownerID), zap.Error(err))
		return
	}
	embeds := []*discordgo.MessageEmbed{ClosedPanelEmbed()}
	components := []discordgo.MessageComponent{}
	if _, err := s.ChannelMessageEditComplex(&discordgo.MessageEdit{ID: prev.MessageID, Channel: prev.ChannelID, Embeds: &embeds, Components: &components}); err != nil {
		c.log.Debug("close previous panel failed", zap.String("message_id", prev.MessageID), zap.Error(err))
	}
}

// panelForMessage resolves a live panel by its message
func (c *SlotsCog) panelForMessage(messageID string) *Panel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	owner, ok := c.byMessage[messageID]
	if !ok {
		return nil
	}
	return c.panels[owner]
}

func (c *SlotsCog) panelForOwner(ownerID string) *Panel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.panels[ownerID]
}

func (c *SlotsCog) snapshot() []*Panel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	panels := make([]*Panel, 0, len(c.panels))
	for _, p := range c.panels {
		panels = append(panels, p)
	}
	return panels
}

// HandleComponent processes panel button presses
func (c *SlotsCog) HandleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	action := slots.ActionForCustomID(i.MessageComponentData().CustomID)
	if action == slots.ActionNone || i.Message == nil {
		return
	}

	p := c.panelForMessage(i.Message.ID)
	if p == nil {
		utils.UpdateComponentInteraction(s, i, ClosedPanelEmbed(), []discordgo.MessageComponent{})
		return
	}
	if utils.InteractionUserID(i) != p.OwnerID {
		utils.SendInteractionResponse(s, i, utils.ErrorEmbed("Slots", "This isn't your panel."), nil, true)
		return
	}
	p.touch(i)

	switch action {
	case slots.ActionDeposit:
		s.InteractionRespond(i.Interaction, utils.CreateTextInputModal(slots.CustomIDDepositForm, "Deposit", amountInputID, "Enter deposit amount", "1000"))
		return
	case slots.ActionWithdraw:
		s.InteractionRespond(i.Interaction, utils.CreateTextInputModal(slots.CustomIDWithdrawForm, "Withdraw", amountInputID, "Enter withdrawal amount", "1000"))
		return
	}

	if err := utils.AcknowledgeComponentInteraction(s, i); err != nil {
		c.log.Debug("acknowledge failed", zap.Error(err))
	}
	go c.dispatch(p, action, "")
}

// HandleModal processes deposit and withdraw forms
func (c *SlotsCog) HandleModal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	action := slots.ActionForCustomID(data.CustomID)
	if action != slots.ActionDeposit && action != slots.ActionWithdraw {
		return
	}

	p := c.panelForOwner(utils.InteractionUserID(i))
	if p == nil {
		utils.SendInteractionResponse(s, i, ClosedPanelEmbed(), nil, true)
		return
	}
	p.touch(i)

	if err := utils.AcknowledgeComponentInteraction(s, i); err != nil {
		c.log.Debug("acknowledge failed", zap.Error(err))
	}
	go c.dispatch(p, action, utils.ModalTextValue(data, amountInputID))
}

// HandleMessage maps single-key messages in the panel channel to actions
func (c *SlotsCog) HandleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	action := slots.ActionForKey(m.Content)
	if action == slots.ActionNone {
		return
	}
	p := c.panelForOwner(m.Author.ID)
	if p == nil || p.ChannelID != m.ChannelID {
		return
	}
	p.seen(time.Now())
	go c.dispatch(p, action, "")
}

func (c *SlotsCog) dispatch(p *Panel, action slots.Action, amount string) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panel action panicked", zap.String("action", action.String()), zap.Any("panic", r))
		}
	}()

	// gateway failures were already surfaced to the owner by the controller
	if err := slots.Dispatch(context.Background(), p.Controller, action, amount); err != nil {
		c.log.Debug("action not applied", zap.String("action", action.String()), zap.Error(err))
	}
}

// RefreshAll re-renders every panel, e.g. after the live feed changes state
func (c *SlotsCog) RefreshAll() {
	for _, p := range c.snapshot() {
		p.Controller.Refresh()
	}
}

// idlePanels lists panels untouched since before cutoff with no spin in flight
func (c *SlotsCog) idlePanels(cutoff time.Time) []*Panel {
	var idle []*Panel
	for _, p := range c.snapshot() {
		if p.idleSince().Before(cutoff) && !p.Controller.Phase().Locked() {
			idle = append(idle, p)
		}
	}
	return idle
}

// sweep closes idle panels and reports how many it closed
func (c *SlotsCog) sweep(now time.Time) int {
	idle := c.idlePanels(now.Add(-c.deps.Tuning.IdleTimeout))
	for _, p := range idle {
		c.retire(p, ClosedPanelEmbed())
		if err := c.deps.Store.DeletePanel(context.Background(), p.OwnerID); err != nil {
			c.log.Warn("forget idle panel failed", zap.String("user_id", p.OwnerID), zap.Error(err))
		}
	}
	if len(idle) > 0 {
		c.log.Info("closed idle panels", zap.Int("count", len(idle)))
	}
	return len(idle)
}

func (c *SlotsCog) sweepRoutine() {
	for {
		select {
		case <-c.done:
			return
		case now := <-c.sweeper.C:
			c.sweep(now)
		}
	}
}

// Close stops every panel; stored placements are kept for the next start
func (c *SlotsCog) Close() {
	c.once.Do(func() {
		c.sweeper.Stop()
		close(c.done)
	})
	for _, p := range c.snapshot() {
		c.untrack(p)
		p.Controller.Cancel()
		p.writer.Close()
	}
}

// IsSlotsComponent reports whether a custom id belongs to this cog
func IsSlotsComponent(customID string) bool {
	return strings.HasPrefix(customID, slots.CustomIDPrefix)
}
