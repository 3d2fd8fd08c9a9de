// Package pbn converts Portable Bridge Notation boards into BBO's LIN format.
//
// Only the tags needed for a static board are read: Board, Dealer,
// Vulnerable (or Vul), Deal and Event. The input is treated as one board;
// when a tag appears more than once the last occurrence wins, so a
// multi-board file yields a mix of its boards' last values.
//
// Conversion never fails. Missing or unknown values fall back to defaults:
// dealer North, vulnerability none, empty hands.
package pbn

import (
	"bufio"
	"regexp"
	"strings"
)

// tagPattern matches one `[Name "value"]`. A line may hold several tags.
var tagPattern = regexp.MustCompile(`\[\s*([A-Za-z]+)\s+"([^"]*)"\s*\]`)

// dealerPrefix matches the leading "N:" style first-hand indicator of a Deal.
var dealerPrefix = regexp.MustCompile(`^[A-Za-z]:`)

// Board holds the tag values read from a PBN document.
type Board struct {
	Number     string
	Dealer     string
	Vulnerable string
	Deal       string
	Event      string
}

// Parse scans text line by line, reading every tag on a line in order, and
// keeps the last value of each tag.
func Parse(text string) Board {
	var b Board
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		for _, m := range tagPattern.FindAllStringSubmatch(sc.Text(), -1) {
			b.set(m[1], strings.TrimSpace(m[2]))
		}
	}
	return b
}

func (b *Board) set(tag, value string) {
	switch tag {
	case "Board":
		b.Number = value
	case "Dealer":
		b.Dealer = value
	case "Vulnerable", "Vul":
		b.Vulnerable = value
	case "Deal":
		b.Deal = value
	case "Event":
		b.Event = value
	}
}

// DealerDigit maps N/E/S/W to LIN's 1..4. Anything else is North.
func DealerDigit(dealer string) string {
	switch strings.ToUpper(strings.TrimSpace(dealer)) {
	case "E":
		return "2"
	case "S":
		return "3"
	case "W":
		return "4"
	default:
		return "1"
	}
}

// VulnerabilityCode maps PBN vulnerability words to LIN's o/n/e/b.
// Unknown or empty values mean nobody is vulnerable.
func VulnerabilityCode(vul string) string {
	switch strings.ToLower(strings.TrimSpace(vul)) {
	case "ns":
		return "n"
	case "ew":
		return "e"
	case "all", "both":
		return "b"
	default:
		return "o"
	}
}

// Hands converts a PBN deal into LIN's comma-separated hand list.
// "N:AK.QJ.T98.7654 ..." becomes "AKQJT987654,...": the first-hand prefix
// is dropped and the suit dots inside each hand are removed.
func Hands(deal string) string {
	deal = strings.TrimSpace(deal)
	deal = dealerPrefix.ReplaceAllString(deal, "")

	hands := strings.Fields(deal)
	for i, h := range hands {
		hands[i] = strings.ReplaceAll(h, ".", "")
	}
	return strings.Join(hands, ",")
}

// LIN renders the board as a single LIN record with an empty auction.
func (b Board) LIN() string {
	players := b.Event
	if players == "" {
		players = "N,E,S,W"
	}

	var sb strings.Builder
	sb.WriteString("pn|")
	sb.WriteString(players)
	sb.WriteString("|st||md|")
	sb.WriteString(DealerDigit(b.Dealer))
	sb.WriteString(Hands(b.Deal))
	sb.WriteString("|sv|")
	sb.WriteString(VulnerabilityCode(b.Vulnerable))
	sb.WriteString("|mb|")
	return sb.String()
}

// ToLIN converts PBN text to a LIN record.
func ToLIN(text string) string {
	return Parse(text).LIN()
}
