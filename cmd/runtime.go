package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/zjrosen/sleuth/internal/channel"
	"github.com/zjrosen/sleuth/internal/chat"
	"github.com/zjrosen/sleuth/internal/config"
	"github.com/zjrosen/sleuth/internal/docstore"
	"github.com/zjrosen/sleuth/internal/flags"
	"github.com/zjrosen/sleuth/internal/infrastructure/sqlite"
	"github.com/zjrosen/sleuth/internal/log"
	"github.com/zjrosen/sleuth/internal/session"
	"github.com/zjrosen/sleuth/internal/tracing"
	"github.com/zjrosen/sleuth/internal/ui/styles"
)

// runtime is the wired client stack shared by the interactive and
// one-shot commands.
type runtime struct {
	cfg      config.Config
	flags    *flags.Registry
	db       *sqlite.DB
	identity *session.Identity
	tracing  *tracing.Provider
	docs     *docstore.Client
	channel  *channel.Manager
	client   *chat.Client
}

func newRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg, flags: flags.New(cfg.Flags)}

	rt.db, rt.identity = openIdentity(cfg, rt.flags)

	provider, err := tracing.NewProvider(tracing.FromConfig(cfg.Tracing))
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}
	rt.tracing = provider

	rt.docs, err = openDocs(cfg, rt.flags)
	if err != nil {
		rt.Close()
		return nil, err
	}

	endpoint, err := cfg.ChannelURL()
	if err != nil {
		rt.Close()
		return nil, err
	}
	opts := channel.OptionsFromConfig(cfg.Channel)
	opts.Identity = rt.identity
	rt.channel, err = channel.New(endpoint, opts)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("creating channel: %w", err)
	}

	rt.client = chat.New(rt.identity, rt.channel, rt.docs, chat.Options{
		Flags:  rt.flags,
		Tracer: provider.Tracer(),
	})
	log.Info(log.CatSession, "Session ready", "scope", rt.identity.Scope(), "endpoint", endpoint)
	return rt, nil
}

// Close shuts everything down in reverse order. Safe on a partial runtime.
func (rt *runtime) Close() {
	if rt.client != nil {
		_ = rt.client.Close()
	} else if rt.channel != nil {
		_ = rt.channel.Close()
	}
	if rt.tracing != nil {
		if err := rt.tracing.Shutdown(context.Background()); err != nil {
			log.Warn(log.CatTrace, "Tracing shutdown failed", "error", err)
		}
	}
	if rt.db != nil {
		_ = rt.db.Close()
	}
}

// openIdentity scopes the tab identity to the terminal tab. With
// persistence on, the identity survives restarts in the same tab; if the
// database cannot be opened the identity lives in memory.
func openIdentity(cfg config.Config, reg *flags.Registry) (*sqlite.DB, *session.Identity) {
	scope := session.ScopeFromEnv(cfg.Session.TabEnv)
	if !reg.Enabled(flags.FlagSessionPersistence) {
		return nil, session.NewIdentity(nil, scope)
	}
	db, err := sqlite.NewDB(cfg.Session.DBPath)
	if err != nil {
		log.Warn(log.CatSession, "Session store unavailable, identity will not persist", "error", err)
		return nil, session.NewIdentity(nil, scope)
	}
	return db, session.NewIdentity(db.TabStore(), scope)
}

func openDocs(cfg config.Config, reg *flags.Registry) (*docstore.Client, error) {
	docs, err := docstore.New(docstore.OptionsFromConfig(cfg, reg.Enabled(flags.FlagDocumentCache)))
	if err != nil {
		return nil, fmt.Errorf("creating document client: %w", err)
	}
	return docs, nil
}

func flagsFromConfig() *flags.Registry {
	return flags.New(cfg.Flags)
}

// warnEphemeral tells the user when the tab identity could not be
// persisted. The agent keys conversation state by tab id, so the next run
// in this tab starts a new conversation.
func warnEphemeral(w io.Writer, identity *session.Identity) {
	if !identity.Fallback() {
		return
	}
	log.Warn(log.CatSession, "Tab identity is not persisted", "scope", identity.Scope())
	_, _ = fmt.Fprintln(w, styles.MutedStyle.Render("note: tab identity could not be saved; the next run starts a new conversation"))
}

// releaseOnHangup forgets the tab identity when the terminal hangs up,
// which is what a process sees when its tab is closed. A plain exit keeps
// the identity so the next run in the same tab reuses it. then runs after
// the release.
func releaseOnHangup(ctx context.Context, identity *session.Identity, then func()) (stop func()) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	done := make(chan struct{})

	go func() {
		select {
		case <-hup:
			log.Info(log.CatSession, "Terminal hung up, releasing tab identity", "scope", identity.Scope())
			identity.Release()
			if then != nil {
				then()
			}
		case <-ctx.Done():
		case <-done:
		}
	}()

	return func() {
		signal.Stop(hup)
		close(done)
	}
}
