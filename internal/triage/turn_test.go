package triage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTurnQuestionWithOptions(t *testing.T) {
	turn := ParseTurn("[ASK] Pick one: A) Fever B) Cough")

	require.Equal(t, TurnQuestion, turn.Kind)
	require.Equal(t, "Pick one:", turn.Prompt)
	require.Equal(t, []Option{
		{Key: "A", Label: "A) Fever"},
		{Key: "B", Label: "B) Cough"},
	}, turn.Options)
	require.True(t, turn.HasOptions())
}

func TestParseTurnFinalReport(t *testing.T) {
	turn := ParseTurn("[DIAGNOSIS] Likely pneumonia.")

	require.Equal(t, TurnFinalReport, turn.Kind)
	require.Equal(t, "Likely pneumonia.", turn.Prompt)
	require.Empty(t, turn.Options)
}

func TestParseTurnPlainText(t *testing.T) {
	turn := ParseTurn("Please wait.")

	require.Equal(t, TurnPlainText, turn.Kind)
	require.Equal(t, "Please wait.", turn.Prompt)
	require.False(t, turn.HasOptions())
}

func TestParseTurnQuestionWithoutOptionsFallsBackToFreeText(t *testing.T) {
	turn := ParseTurn("[ASK] Describe the pain in your own words.")

	require.Equal(t, TurnQuestion, turn.Kind)
	require.Equal(t, "Describe the pain in your own words.", turn.Prompt)
	require.False(t, turn.HasOptions())
}

func TestParseTurnTrimsWhitespace(t *testing.T) {
	turn := ParseTurn("  \n [ASK]   How long?   A) Hours   B) Days \t ")

	require.Equal(t, TurnQuestion, turn.Kind)
	require.Equal(t, "How long?", turn.Prompt)
	require.Len(t, turn.Options, 2)
	require.Equal(t, "A) Hours", turn.Options[0].Label)
	require.Equal(t, "B) Days", turn.Options[1].Label)
}

func TestParseTurnMarkerInsideText(t *testing.T) {
	// Marker detection does not require the marker at position zero.
	turn := ParseTurn("Note: [ASK] Any allergies? A) Yes B) No")

	require.Equal(t, TurnQuestion, turn.Kind)
	require.Len(t, turn.Options, 2)
}

func TestParseTurnBareOptionKey(t *testing.T) {
	turn := ParseTurn("[ASK] Pick: A) B) Second")

	require.Equal(t, TurnQuestion, turn.Kind)
	require.Equal(t, []Option{
		{Key: "A", Label: "A)"},
		{Key: "B", Label: "B) Second"},
	}, turn.Options)
}

func TestParseTurnMultiWordOptionLabels(t *testing.T) {
	turn := ParseTurn("[ASK] Where does it hurt? A) Upper abdomen B) Lower back C) Behind the eyes")

	require.Equal(t, "Where does it hurt?", turn.Prompt)
	require.Equal(t, []Option{
		{Key: "A", Label: "A) Upper abdomen"},
		{Key: "B", Label: "B) Lower back"},
		{Key: "C", Label: "C) Behind the eyes"},
	}, turn.Options)
}

func TestParseTurnEmptyString(t *testing.T) {
	turn := ParseTurn("")

	require.Equal(t, TurnPlainText, turn.Kind)
	require.Equal(t, "", turn.Prompt)
}
