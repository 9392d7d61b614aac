package listener

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/banarnia/infected/internal/contagion"
	"github.com/banarnia/infected/internal/eventbus"
	"github.com/banarnia/infected/internal/messages"
	"github.com/banarnia/infected/internal/testutil/testlog"
	"github.com/banarnia/infected/internal/world"
)

type fixture struct {
	now      time.Time
	world    *world.World
	bus      *eventbus.Bus
	engine   *contagion.Engine
	listener *Listener
}

func newFixture(t *testing.T, glow bool) *fixture {
	t.Helper()
	testlog.Start(t)
	f := &fixture{now: time.Unix(1_700_000_000, 0)}
	wcfg := world.DefaultConfig()
	wcfg.Now = func() time.Time { return f.now }
	f.world = world.New(wcfg)
	effects, _ := world.BuildEffects(world.DefaultEffects(), 60*time.Second)
	f.world.SetInfectionEffects(effects)
	f.bus = eventbus.New()
	f.engine = contagion.NewEngine(contagion.DefaultConfig(), contagion.Deps{
		Clock:      contagion.ClockFunc(func() contagion.Timestamp { return contagion.TimestampOf(f.now) }),
		Population: f.world,
		Proximity:  f.world,
		Effects:    f.world,
		Sink:       f.bus,
	})
	f.listener = New(f.engine, f.world, messages.New(), glow)
	detach := f.listener.Attach(f.bus)
	t.Cleanup(detach)
	return f
}

func (f *fixture) join(t *testing.T, name string, pos world.Vec3) world.PlayerID {
	t.Helper()
	v, err := f.world.Join(world.JoinRequest{Name: name, Position: pos, OnGround: true})
	if err != nil {
		t.Fatalf("unexpected join error: %v", err)
	}
	return v.ID
}

func (f *fixture) view(t *testing.T, id world.PlayerID) world.PlayerView {
	t.Helper()
	v, ok := f.world.Player(id)
	if !ok {
		t.Fatalf("player %s missing", id)
	}
	return v
}

func TestCommandInfectionBroadcastsAndGlows(t *testing.T) {
	f := newFixture(t, true)
	alex := f.join(t, "Alex", world.Vec3{})
	steve := f.join(t, "Steve", world.Vec3{X: 100})

	if !f.engine.Infect(alex, nil, contagion.CauseCommand) {
		t.Fatalf("expected infection")
	}
	want := "§aAlex §ehas been infected!"
	if inbox := f.view(t, steve).Inbox; !slices.Equal(inbox, []string{want}) {
		t.Fatalf("unexpected broadcast: %v", inbox)
	}
	v := f.view(t, alex)
	if !v.Glowing {
		t.Fatalf("expected glowing target")
	}
	if !slices.Equal(v.Sounds, []string{SoundInfected}) {
		t.Fatalf("unexpected sounds: %v", v.Sounds)
	}
	if len(v.Effects) != 2 {
		t.Fatalf("expected infection effects: %+v", v.Effects)
	}
}

func TestProximityInfectionNamesOrigin(t *testing.T) {
	f := newFixture(t, false)
	alex := f.join(t, "Alex", world.Vec3{})
	steve := f.join(t, "Steve", world.Vec3{X: 2})
	f.engine.Infect(alex, nil, contagion.CauseCommand)

	f.engine.Sweep(context.Background())

	if !f.engine.IsInfected(steve) {
		t.Fatalf("expected proximity spread")
	}
	inbox := f.view(t, alex).Inbox
	want := "§aSteve §ehas been infected by §6Alex§e!"
	if len(inbox) != 2 || inbox[1] != want {
		t.Fatalf("unexpected broadcasts: %v", inbox)
	}
	if f.view(t, steve).Glowing {
		t.Fatalf("glow disabled but target glows")
	}
}

func TestCancelledAttemptIsSilent(t *testing.T) {
	f := newFixture(t, true)
	f.bus.OnInfectionAttempt(eventbus.PriorityLow, func(evt *contagion.InfectionAttempt) { evt.Cancel() })
	alex := f.join(t, "Alex", world.Vec3{})

	if f.engine.Infect(alex, nil, contagion.CauseCommand) {
		t.Fatalf("expected cancelled infection")
	}
	v := f.view(t, alex)
	if len(v.Inbox) != 0 || v.Glowing || len(v.Sounds) != 0 {
		t.Fatalf("cancelled attempt must not notify: %+v", v)
	}
}

func TestMilkCuresAndStartsProtection(t *testing.T) {
	f := newFixture(t, true)
	alex := f.join(t, "Alex", world.Vec3{})
	f.engine.Infect(alex, nil, contagion.CauseCommand)

	if f.listener.ItemConsumed(alex, "bread") {
		t.Fatalf("bread must not cure")
	}
	if !f.listener.ItemConsumed(alex, ItemMilkBucket) {
		t.Fatalf("expected milk to cure")
	}
	if f.engine.IsInfected(alex) || !f.engine.IsProtected(alex) {
		t.Fatalf("unexpected status: %+v", f.engine.Status(alex))
	}
	v := f.view(t, alex)
	if v.Glowing || len(v.Effects) != 0 {
		t.Fatalf("expected glow and effects cleared: %+v", v)
	}
	tail := v.Inbox[len(v.Inbox)-2:]
	if tail[0] != "§eYou are cured from your §ainfection§e!" {
		t.Fatalf("unexpected cured message: %q", tail[0])
	}
	if tail[1] != "§eYou will be protected from infections for §a30 seconds§e!" {
		t.Fatalf("unexpected protection message: %q", tail[1])
	}
	if v.Sounds[len(v.Sounds)-1] != SoundCured {
		t.Fatalf("unexpected sounds: %v", v.Sounds)
	}
	if f.listener.ItemConsumed(alex, ItemMilkBucket) {
		t.Fatalf("milk on a healthy player must not cure")
	}
}

func TestDeathCuresWithoutProtection(t *testing.T) {
	f := newFixture(t, true)
	alex := f.join(t, "Alex", world.Vec3{})
	if f.listener.Died(alex) {
		t.Fatalf("healthy death must not cure")
	}
	f.engine.Infect(alex, nil, contagion.CauseCommand)
	if !f.listener.Died(alex) {
		t.Fatalf("expected death to cure")
	}
	if f.engine.IsInfected(alex) || f.engine.IsProtected(alex) {
		t.Fatalf("unexpected status after death: %+v", f.engine.Status(alex))
	}
	v := f.view(t, alex)
	if v.Glowing {
		t.Fatalf("expected glow cleared on death")
	}
	if v.Inbox[len(v.Inbox)-1] != "§eYou are cured from your §ainfection§e!" {
		t.Fatalf("unexpected last message: %v", v.Inbox)
	}
}

func TestQuitDropsBothTimers(t *testing.T) {
	f := newFixture(t, true)
	alex := f.join(t, "Alex", world.Vec3{})
	f.engine.Infect(alex, nil, contagion.CauseCommand)

	if !f.listener.Quit(alex) {
		t.Fatalf("expected quit to cure")
	}
	st := f.engine.State()
	if st.HasInfectedEntry(alex) || st.HasProtectedEntry(alex) {
		t.Fatalf("expected no timers after quit")
	}
	if len(f.view(t, alex).Effects) != 0 {
		t.Fatalf("expected effects stripped on quit")
	}
}

func TestProtectionExpiryNotifies(t *testing.T) {
	f := newFixture(t, true)
	alex := f.join(t, "Alex", world.Vec3{})
	f.engine.Infect(alex, nil, contagion.CauseCommand)
	f.engine.Cure(alex, contagion.CureCommand)

	f.now = f.now.Add(31 * time.Second)
	f.engine.Sweep(context.Background())

	v := f.view(t, alex)
	if v.Inbox[len(v.Inbox)-1] != "§cYou are not protected from infections anymore!" {
		t.Fatalf("unexpected last message: %v", v.Inbox)
	}
	if v.Sounds[len(v.Sounds)-1] != SoundProtectionRanOut {
		t.Fatalf("unexpected sounds: %v", v.Sounds)
	}
}
