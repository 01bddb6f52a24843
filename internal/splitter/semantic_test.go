package splitter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSemanticSplit_NoHeading(t *testing.T) {
	s := NewSemantic()
	sections := s.Split("just a paragraph\nwith two lines")
	require.Len(t, sections, 1)
	require.Empty(t, sections[0].Heading)
	require.Equal(t, "just a paragraph\nwith two lines", sections[0].Body)
}

func TestSemanticSplit_Empty(t *testing.T) {
	s := NewSemantic()
	require.Nil(t, s.Split(""))
	require.Nil(t, s.Split("   \n\t"))
}

func TestSemanticSplit_HeadingsAtMultipleLevels(t *testing.T) {
	s := NewSemantic()
	text := "# Intro\nShort.\n## Details\nMore text here.\n### Deep\nTail."
	sections := s.Split(text)
	require.Len(t, sections, 3)
	require.Equal(t, "Intro", sections[0].Heading)
	require.Equal(t, "Short.", sections[0].Body)
	require.Equal(t, "Details", sections[1].Heading)
	require.Equal(t, "More text here.", sections[1].Body)
	require.Equal(t, "Deep", sections[2].Heading)
	require.Equal(t, "Tail.", sections[2].Body)
}

func TestSemanticSplit_LeadingPreambleKept(t *testing.T) {
	s := NewSemantic()
	sections := s.Split("preamble before any heading\n\n## First\nbody")
	require.Len(t, sections, 2)
	require.Empty(t, sections[0].Heading)
	require.Equal(t, "preamble before any heading", sections[0].Body)
	require.Equal(t, "First", sections[1].Heading)
}

func TestSemanticSplit_SetextUnderlineIsNotAHeading(t *testing.T) {
	s := NewSemantic()
	sections := s.Split("Title\n=====\nbody text\n## Real\ntail")
	require.Len(t, sections, 2)
	require.Empty(t, sections[0].Heading)
	require.Equal(t, "Title\n=====\nbody text", sections[0].Body)
	require.Equal(t, "Real", sections[1].Heading)
	require.Equal(t, "tail", sections[1].Body)
}

func TestSemanticSplit_LoneHeading(t *testing.T) {
	s := NewSemantic()
	sections := s.Split("## Only Heading")
	require.Len(t, sections, 1)
	require.Equal(t, "Only Heading", sections[0].Heading)
	require.Empty(t, sections[0].Body)
}
