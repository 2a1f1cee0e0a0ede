package format_test

import (
	"strings"
	"testing"

	"courtship/internal/format"
)

func TestASCII_BasicTable(t *testing.T) {
	tb := format.NewTable(format.ASCII)
	tb.Header("Agent", "Role", "Desirability")
	tb.Row("man_0", "man", 51.25)
	tb.Row("woman_0", "woman", 48.5)
	out := tb.String()

	for _, want := range []string{"agent", "woman_0", "51.25"} {
		if !strings.Contains(strings.ToLower(out), want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "───") {
		t.Errorf("expected box-drawing characters in ASCII output:\n%s", out)
	}
}

func TestMarkdown_WithFooter(t *testing.T) {
	tb := format.NewTable(format.Markdown)
	tb.Header("Episode", "Proposals")
	tb.Row(0, 30)
	tb.Row(1, 28)
	tb.Footer("TOTAL", 58)
	out := tb.String()

	if !strings.Contains(strings.ToLower(out), "| episode") {
		t.Errorf("expected markdown header with '| Episode':\n%s", out)
	}
	if !strings.Contains(strings.ToUpper(out), "TOTAL") || !strings.Contains(out, "58") {
		t.Errorf("expected footer in output:\n%s", out)
	}
}

func TestCSV_Table(t *testing.T) {
	tb := format.NewTable(format.CSV)
	tb.Header("partner", "plain", "bonus")
	tb.Row(0, "-1", "0.5")
	out := tb.String()

	if !strings.Contains(strings.ToLower(out), "partner,plain,bonus") {
		t.Errorf("expected csv header:\n%s", out)
	}
	if !strings.Contains(out, "0,-1,0.5") {
		t.Errorf("expected csv row:\n%s", out)
	}
}

func TestColumnsAlignment(t *testing.T) {
	tb := format.NewTable(format.ASCII)
	tb.Header("Name", "Rate")
	tb.Columns(format.ColumnConfig{Number: 2, Align: format.AlignRight})
	tb.Row("with rose", "0.75")
	if out := tb.String(); !strings.Contains(out, "0.75") {
		t.Errorf("expected value in output:\n%s", out)
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]format.Mode{
		"":         format.ASCII,
		"table":    format.ASCII,
		"Markdown": format.Markdown,
		"csv":      format.CSV,
	}
	for in, want := range cases {
		got, err := format.ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := format.ParseMode("html"); err == nil {
		t.Fatal("expected unknown format error")
	}
}

func TestHelpers(t *testing.T) {
	if got := format.Percent(0.4567); got != "45.7%" {
		t.Errorf("Percent = %q", got)
	}
	if got := format.Ratio(1, 4); got != "1/4 (25.0%)" {
		t.Errorf("Ratio = %q", got)
	}
	if got := format.Ratio(0, 0); got != "-" {
		t.Errorf("Ratio of nothing = %q", got)
	}
	if got := format.Float(2.0/3.0, 3); got != "0.667" {
		t.Errorf("Float = %q", got)
	}
	if format.BoolMark(true) != "✓" || format.BoolMark(false) != "✗" {
		t.Error("unexpected bool marks")
	}
}
