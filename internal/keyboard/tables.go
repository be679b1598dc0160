package keyboard

// Layout constants for a standard 88-key keyboard.
const (
	// NumKeys is the number of playable keys.
	NumKeys = 88
	// NumWhiteKeys is the number of white keys.
	NumWhiteKeys = 52
	// NumBlackKeys is the number of black keys.
	NumBlackKeys = 36
	// NumBoundaries is the number of white/white splits.
	NumBoundaries = NumWhiteKeys - 1
	// NoKey is the sentinel for a fingertip that is not over any key or a
	// slot with no fingertip this frame.
	NoKey = 88
	// NumSlots is the number of fingertip slots in a MatchResult.
	NumSlots = 10
)

// whiteKeyNumbers maps a white-key slot (0 at the largest keyboard-space x)
// to its absolute key number, A0 = 0.
var whiteKeyNumbers = [NumWhiteKeys]int{
	0, 2, 3, 5, 7, 8, 10, 12, 14, 15, 17, 19, 20, 22, 24, 26, 27, 29, 31, 32, 34, 36,
	38, 39, 41, 43, 44, 46, 48, 50, 51, 53, 55, 56, 58, 60, 62, 63, 65, 67, 68, 70,
	72, 74, 75, 77, 79, 80, 82, 84, 86, 87,
}

// blackKeyNumbers maps a black-key slot (sorted by descending x) to its
// absolute key number.
var blackKeyNumbers = [NumBlackKeys]int{
	1, 4, 6, 9, 11, 13, 16, 18, 21, 23, 25, 28, 30, 33, 35, 37, 40, 42,
	45, 47, 49, 52, 54, 57, 59, 61, 64, 66, 69, 71, 73, 76, 78, 81, 83, 85,
}

// blackKeyBoundarySlots maps each sorted black key to the white-key boundary
// its center line defines. Boundaries missing from this table have no black
// key between the two white keys (B/C and E/F) and are interpolated.
var blackKeyBoundarySlots = [NumBlackKeys]int{
	0, 2, 3, 5, 6, 7, 9, 10, 12, 13, 14, 16, 17, 19, 20, 21, 23, 24,
	26, 27, 28, 30, 31, 33, 34, 35, 37, 38, 40, 41, 42, 44, 45, 47, 48, 49,
}

// candidateBlackKeys lists, for each bisect position over the ascending
// boundary array, the black keys that can overlap that white-key column, in
// the order they are tested. Position 0 is handled by the matcher directly.
var candidateBlackKeys = [NumBoundaries + 1][]int{
	1: {35}, 2: {34, 35}, 3: {33, 34}, 4: {33}, 5: {32}, 6: {31, 32}, 7: {31},
	8: {30}, 9: {29, 30}, 10: {28, 29}, 11: {28}, 12: {27}, 13: {26, 27}, 14: {26},
	15: {25}, 16: {24, 25}, 17: {23, 24}, 18: {23}, 19: {22}, 20: {21, 22}, 21: {21},
	22: {20}, 23: {19, 20}, 24: {18, 19}, 25: {18}, 26: {17}, 27: {16, 17}, 28: {16},
	29: {15}, 30: {14, 15}, 31: {13, 14}, 32: {13}, 33: {12}, 34: {11, 12}, 35: {11},
	36: {10}, 37: {9, 10}, 38: {8, 9}, 39: {8}, 40: {7}, 41: {6, 7}, 42: {6},
	43: {5}, 44: {4, 5}, 45: {3, 4}, 46: {3}, 47: {2}, 48: {1, 2}, 49: {1},
	50: {0}, 51: {0},
}

// HandSide identifies which hand a fingertip belongs to. The numeric values
// match the landmark collaborator's wire encoding.
type HandSide int

const (
	Left  HandSide = 1
	Right HandSide = 2
)

// String returns "left" or "right".
func (h HandSide) String() string {
	switch h {
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "unknown"
}

// Fingertip landmark ids following the MediaPipe hand model.
const (
	ThumbTip  = 4
	IndexTip  = 8
	MiddleTip = 12
	RingTip   = 16
	PinkyTip  = 20
)

type fingertip struct {
	hand     HandSide
	landmark int
}

// fingertipSlots orders the ten tracked fingertips, left pinky to right pinky.
var fingertipSlots = [NumSlots]fingertip{
	{Left, PinkyTip}, {Left, RingTip}, {Left, MiddleTip}, {Left, IndexTip}, {Left, ThumbTip},
	{Right, ThumbTip}, {Right, IndexTip}, {Right, MiddleTip}, {Right, RingTip}, {Right, PinkyTip},
}

// FingertipSlot returns the MatchResult slot for a hand and landmark id.
func FingertipSlot(hand HandSide, landmark int) (int, bool) {
	for i, f := range fingertipSlots {
		if f.hand == hand && f.landmark == landmark {
			return i, true
		}
	}
	return 0, false
}

// WhiteKeyNumber returns the absolute key number of white-key slot i.
func WhiteKeyNumber(i int) int {
	return whiteKeyNumbers[i]
}

// BlackKeyNumber returns the absolute key number of black-key slot i.
func BlackKeyNumber(i int) int {
	return blackKeyNumbers[i]
}

// IsBlack reports whether absolute key number n is a black key.
func IsBlack(n int) bool {
	// A0 = 0, so pitch class relative to C is (n+9) % 12.
	switch (n + 9) % 12 {
	case 1, 3, 6, 8, 10:
		return true
	}
	return false
}
