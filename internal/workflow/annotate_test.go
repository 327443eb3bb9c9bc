package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/snap2pdf/internal/domain"
	"github.com/spherical/snap2pdf/internal/download"
)

func TestOpenEditSession(t *testing.T) {
	f := newFixture()
	sess, err := f.svc.OpenEditSession(context.Background(), domain.Input{
		Name: "doc.pdf",
		Data: fakeDoc("p1", "p2", "p3"),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, 3, sess.PageCount)
	assert.Equal(t, AnnotateLoaded, sess.State())
	w, h := sess.Size()
	assert.Equal(t, 300, w)
	assert.Equal(t, 420, h)
	assert.Equal(t, []float64{1.5}, f.renderer.scales)
	assert.Equal(t, f.renderer.opened, f.renderer.closed)
	assert.Empty(t, sess.Texts())
}

func TestOpenEditSession_CorruptInput(t *testing.T) {
	f := newFixture()
	sess, err := f.svc.OpenEditSession(context.Background(), domain.Input{Name: "bad.pdf", Data: []byte("junk")})
	assert.Nil(t, sess)
	assert.True(t, domain.IsType(err, domain.ErrorTypeDocumentLoad))
}

func TestEditSession_TextObjects(t *testing.T) {
	f := newFixture()
	sess, err := f.svc.OpenEditSession(context.Background(), domain.Input{Name: "doc.pdf", Data: fakeDoc("p1")})
	require.NoError(t, err)

	obj, err := sess.AddText(150, 200)
	require.NoError(t, err)
	assert.Equal(t, "Edit Me", obj.Text)
	assert.Equal(t, AnnotateEditing, sess.State())

	moved, err := sess.MoveText(obj.ID, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, 10.0, moved.X)
	assert.Equal(t, 20.0, moved.Y)

	edited, err := sess.EditText(obj.ID, "Approved")
	require.NoError(t, err)
	assert.Equal(t, "Approved", edited.Text)

	texts := sess.Texts()
	require.Len(t, texts, 1)
	assert.Equal(t, "Approved", texts[0].Text)

	_, err = sess.MoveText("missing", 1, 1)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))

	require.NoError(t, sess.RemoveText(obj.ID))
	assert.Empty(t, sess.Texts())
}

func TestSaveEditSession(t *testing.T) {
	t.Run("replaces page one only", func(t *testing.T) {
		f := newFixture()
		sess, err := f.svc.OpenEditSession(context.Background(), domain.Input{Name: "doc.pdf", Data: fakeDoc("p1", "p2", "p3")})
		require.NoError(t, err)
		_, err = sess.AddText(150, 210)
		require.NoError(t, err)

		sink := download.NewMemorySink()
		out, err := f.svc.SaveEditSession(context.Background(), sess, sink)
		require.NoError(t, err)
		assert.Equal(t, domain.EditedFileName, out.Name)
		assert.Equal(t, AnnotateDone, sess.State())

		pages, err := parseFake(out.Data)
		require.NoError(t, err)
		require.Len(t, pages, 3)
		assert.Contains(t, pages[0], "[stamp")
		assert.Equal(t, []string{"p2", "p3"}, pages[1:])
		require.Len(t, f.composer.stamps, 1)
		assert.Equal(t, []byte{0xFF, 0xD8}, f.composer.stamps[0][:2])
	})

	t.Run("zero texts keeps the page count", func(t *testing.T) {
		f := newFixture()
		sess, err := f.svc.OpenEditSession(context.Background(), domain.Input{Name: "doc.pdf", Data: fakeDoc("p1", "p2")})
		require.NoError(t, err)

		out, err := f.svc.SaveEditSession(context.Background(), sess, nil)
		require.NoError(t, err)
		pages, err := parseFake(out.Data)
		require.NoError(t, err)
		assert.Len(t, pages, 2)
	})

	t.Run("saving twice re-flattens", func(t *testing.T) {
		f := newFixture()
		sess, err := f.svc.OpenEditSession(context.Background(), domain.Input{Name: "doc.pdf", Data: fakeDoc("p1")})
		require.NoError(t, err)

		first, err := f.svc.SaveEditSession(context.Background(), sess, nil)
		require.NoError(t, err)
		second, err := f.svc.SaveEditSession(context.Background(), sess, nil)
		require.NoError(t, err)
		assert.Equal(t, first.Data, second.Data)
		assert.Len(t, f.composer.stamps, 2)
	})

	t.Run("quality out of range", func(t *testing.T) {
		f := newFixture()
		f.svc.settings.Annotation.JPEGQuality = 101
		sess, err := f.svc.OpenEditSession(context.Background(), domain.Input{Name: "doc.pdf", Data: fakeDoc("p1")})
		require.NoError(t, err)

		_, err = f.svc.SaveEditSession(context.Background(), sess, nil)
		assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
		assert.Empty(t, f.composer.stamps)
	})

	t.Run("without a session", func(t *testing.T) {
		f := newFixture()
		sink := download.NewMemorySink()
		_, err := f.svc.SaveEditSession(context.Background(), nil, sink)
		assert.True(t, domain.IsType(err, domain.ErrorTypeNoActiveEditSession))
		assert.Empty(t, sink.Outputs())
	})

	t.Run("closed session", func(t *testing.T) {
		f := newFixture()
		sess, err := f.svc.OpenEditSession(context.Background(), domain.Input{Name: "doc.pdf", Data: fakeDoc("p1")})
		require.NoError(t, err)
		sess.Close()

		_, err = f.svc.SaveEditSession(context.Background(), sess, nil)
		assert.True(t, domain.IsType(err, domain.ErrorTypeNoActiveEditSession))
		_, err = sess.AddText(1, 1)
		assert.True(t, domain.IsType(err, domain.ErrorTypeNoActiveEditSession))
	})
}

func TestAnnotateWorkflow(t *testing.T) {
	f := newFixture()
	w := f.svc.Annotate()
	assert.Equal(t, AnnotateNoDocument, w.State())

	_, err := w.AddText(1, 1)
	assert.True(t, domain.IsType(err, domain.ErrorTypeNoActiveEditSession))
	_, err = w.Save(context.Background(), nil)
	assert.True(t, domain.IsType(err, domain.ErrorTypeNoActiveEditSession))

	require.NoError(t, w.Load(context.Background(), domain.Input{Name: "a.pdf", Data: fakeDoc("p1")}))
	first := w.Session()
	require.NotNil(t, first)

	obj, err := w.AddText(100, 100)
	require.NoError(t, err)
	_, err = w.EditText(obj.ID, "Signed")
	require.NoError(t, err)
	assert.Len(t, w.Texts(), 1)

	// loading another document replaces the session
	require.NoError(t, w.Load(context.Background(), domain.Input{Name: "b.pdf", Data: fakeDoc("q1", "q2")}))
	assert.NotEqual(t, first.ID, w.Session().ID)
	assert.Equal(t, AnnotateNoDocument, first.State())
	assert.Empty(t, w.Texts())

	out, err := w.Save(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.EditedFileName, out.Name)

	// a failed load leaves no document
	err = w.Load(context.Background(), domain.Input{Name: "bad.pdf", Data: []byte("junk")})
	assert.True(t, domain.IsType(err, domain.ErrorTypeDocumentLoad))
	assert.Nil(t, w.Session())
	assert.Equal(t, AnnotateNoDocument, w.State())

	w.Close()
}

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestSessionStore(t *testing.T) {
	newStore := func(ttl time.Duration, max int) (*SessionStore, *manualClock) {
		clock := &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		settings := DefaultSettings()
		settings.Annotation.SessionTTL = ttl
		settings.Annotation.MaxSessions = max
		svc := NewService(Engines{
			Renderer: &fakeRenderer{},
			Text:     fakeText{},
			Composer: &fakeComposer{},
			Pager:    &fakePager{},
		}, settings, WithClock(clock.Now))
		return NewSessionStore(svc), clock
	}
	input := domain.Input{Name: "doc.pdf", Data: fakeDoc("p1")}

	t.Run("create get delete", func(t *testing.T) {
		st, _ := newStore(time.Hour, 4)
		sess, err := st.Create(context.Background(), input)
		require.NoError(t, err)

		got, err := st.Get(sess.ID)
		require.NoError(t, err)
		assert.Same(t, sess, got)
		assert.Equal(t, 1, st.Len())

		out, err := st.Save(context.Background(), sess.ID, download.NewMemorySink())
		require.NoError(t, err)
		assert.Equal(t, domain.EditedFileName, out.Name)

		require.NoError(t, st.Delete(sess.ID))
		assert.ErrorIs(t, st.Delete(sess.ID), ErrSessionNotFound)
		_, err = st.Get(sess.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("idle sessions expire", func(t *testing.T) {
		st, clock := newStore(time.Minute, 4)
		old, err := st.Create(context.Background(), input)
		require.NoError(t, err)
		clock.Advance(45 * time.Second)
		fresh, err := st.Create(context.Background(), input)
		require.NoError(t, err)

		clock.Advance(30 * time.Second)
		_, err = st.Get(old.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
		assert.Equal(t, AnnotateNoDocument, old.State())

		_, err = st.Get(fresh.ID)
		require.NoError(t, err)

		clock.Advance(time.Minute)
		assert.Equal(t, 1, st.Sweep())
		assert.Zero(t, st.Len())
	})

	t.Run("editing keeps a session alive", func(t *testing.T) {
		st, clock := newStore(time.Minute, 4)
		sess, err := st.Create(context.Background(), input)
		require.NoError(t, err)

		clock.Advance(50 * time.Second)
		_, err = sess.AddText(10, 10)
		require.NoError(t, err)
		clock.Advance(50 * time.Second)

		_, err = st.Get(sess.ID)
		assert.NoError(t, err)
	})

	t.Run("evicts least recently used when full", func(t *testing.T) {
		st, clock := newStore(time.Hour, 2)
		a, err := st.Create(context.Background(), input)
		require.NoError(t, err)
		clock.Advance(time.Second)
		b, err := st.Create(context.Background(), input)
		require.NoError(t, err)
		clock.Advance(time.Second)
		_, err = a.AddText(5, 5) // a is now the most recent
		require.NoError(t, err)
		clock.Advance(time.Second)

		c, err := st.Create(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, 2, st.Len())

		_, err = st.Get(b.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
		_, err = st.Get(a.ID)
		assert.NoError(t, err)
		_, err = st.Get(c.ID)
		assert.NoError(t, err)
	})

	t.Run("close all", func(t *testing.T) {
		st, _ := newStore(time.Hour, 4)
		sess, err := st.Create(context.Background(), input)
		require.NoError(t, err)
		st.CloseAll()
		assert.Zero(t, st.Len())
		assert.Equal(t, AnnotateNoDocument, sess.State())
	})

	t.Run("run stops with the context", func(t *testing.T) {
		st, _ := newStore(time.Hour, 4)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			st.Run(ctx, 10*time.Millisecond)
			close(done)
		}()
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after cancel")
		}
	})
}
