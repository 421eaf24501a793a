package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/sleuth/internal/session"
)

type readOnlyStorage struct{}

func (readOnlyStorage) Load(string) (string, bool, error) { return "", false, nil }
func (readOnlyStorage) Store(string, string) error        { return errors.New("read-only") }
func (readOnlyStorage) Remove(string) error               { return nil }

func TestWarnEphemeral(t *testing.T) {
	persisted := session.NewIdentity(nil, "tab-a")
	persisted.Get()
	var quiet bytes.Buffer
	warnEphemeral(&quiet, persisted)
	require.Empty(t, quiet.String())

	ephemeral := session.NewIdentity(readOnlyStorage{}, "tab-b")
	ephemeral.Get()
	var warned bytes.Buffer
	warnEphemeral(&warned, ephemeral)
	require.Contains(t, warned.String(), "next run starts a new conversation")
}
