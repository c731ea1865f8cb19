package registers

// Word layout of the 120-word PLC image. Addresses are 1-based holding
// register numbers as used on the wire. The layout is fixed by the PLC
// program; nothing here is configurable.
const (
	ImageWords = 120
	SlotWords  = 20
	SlotCount  = 5

	// Control words 1-9. Words 6, 8 and 9 are reserved.
	AddrTrigger         = 1
	AddrProcessingState = 2
	AddrControllerState = 3
	AddrPrinterState    = 4
	AddrErrorCode       = 5
	AddrSelectedBatch   = 7

	// First word of slot 1. Slot n starts at AddrSlotBase + SlotWords*(n-1).
	AddrSlotBase = 10
)

// Field offsets and widths within one 20-word slot, 0-based.
const (
	offIndex          = 0
	offStatus         = 1
	offPrintCount     = 2
	offBatchCode      = 3
	offDryerCode      = 6
	offProductionDate = 9
	offExpiryDate     = 15

	wordsBatchCode      = 3
	wordsDryerCode      = 3
	wordsProductionDate = 6
	wordsExpiryDate     = 5
)

// Maximum character lengths of the string fields.
const (
	MaxCodeChars = 5
	MaxDateChars = 10
)

// SlotAddress returns the 1-based word address of the first word of slot n (1-5).
func SlotAddress(slot int) int {
	return AddrSlotBase + SlotWords*(slot-1)
}

// ValidAddress reports whether a 1-based word address lies inside the image.
func ValidAddress(addr int) bool {
	return addr >= 1 && addr <= ImageWords
}
