package layout

const (
	// IDMarch17 is the first published form: address on its own line,
	// postal code and town together, five purposes.
	IDMarch17 = "2020-03-17"
	// IDMarch24 adds the judicial and general interest purposes and prints
	// the whole postal address on a single line.
	IDMarch24 = "2020-03-24"
	// IDApril02 adds the birth town and the time of departure, and prints
	// address, postal code and town on separate lines.
	IDApril02 = "2020-04-02"

	// DefaultID is the layout used when none is requested
	DefaultID = IDApril02

	textSize = 10
)

// Builtin returns fresh copies of the built-in layouts, oldest first
func Builtin() []*Layout {
	return []*Layout{march17(), march24(), april02()}
}

func march17() *Layout {
	return &Layout{
		ID:       IDMarch17,
		Title:    "Attestation de déplacement dérogatoire (17 mars 2020)",
		Template: "attestation-2020-03-17.pdf",
		Fields: []TextPlacement{
			{Fields: []Field{FieldName}, X: 135, Y: 622, Size: textSize},
			{Fields: []Field{FieldBirthDay}, X: 135, Y: 593, Size: textSize},
			{Fields: []Field{FieldAddress}, X: 135, Y: 559, Size: textSize},
			{Fields: []Field{FieldPostalCode, FieldTown}, X: 135, Y: 544, Size: textSize},
			{Fields: []Field{FieldTown}, X: 375, Y: 140, Size: textSize},
		},
		Purposes: []Purpose{PurposePro, PurposeGrocery, PurposeHealth, PurposeFamily, PurposeSport},
		Marks: map[Purpose]Point{
			PurposePro:     {X: 51, Y: 425},
			PurposeGrocery: {X: 51, Y: 350},
			PurposeHealth:  {X: 51, Y: 305},
			PurposeFamily:  {X: 51, Y: 274},
			PurposeSport:   {X: 51, Y: 229},
		},
		Glyph:    "x",
		MarkSize: 17,
		Clock: []ClockPlacement{
			{Format: "2", X: 478, Y: 140, Size: textSize},
			{Format: "01", X: 502, Y: 140, Size: textSize},
		},
		Sign: SignaturePlacement{TargetWidth: 150, Y: 30, RightMargin: 50},
	}
}

func march24() *Layout {
	return &Layout{
		ID:       IDMarch24,
		Title:    "Attestation de déplacement dérogatoire (24 mars 2020)",
		Template: "attestation-2020-03-24.pdf",
		Fields: []TextPlacement{
			{Fields: []Field{FieldName}, X: 123, Y: 686, Size: textSize},
			{Fields: []Field{FieldBirthDay}, X: 123, Y: 661, Size: textSize},
			{Fields: []Field{FieldAddress, FieldPostalCode, FieldTown}, X: 134, Y: 613, Size: textSize},
			{Fields: []Field{FieldTown}, X: 111, Y: 226, Size: textSize},
		},
		Purposes: append([]Purpose(nil), Purposes...),
		Marks: map[Purpose]Point{
			PurposePro:             {X: 77, Y: 528},
			PurposeGrocery:         {X: 77, Y: 478},
			PurposeHealth:          {X: 77, Y: 437},
			PurposeFamily:          {X: 77, Y: 401},
			PurposeSport:           {X: 77, Y: 345},
			PurposeJudicial:        {X: 77, Y: 298},
			PurposeGeneralInterest: {X: 77, Y: 262},
		},
		Glyph:    "x",
		MarkSize: 19,
		Clock: []ClockPlacement{
			{Format: "02", X: 92, Y: 200, Size: textSize},
			{Format: "01", X: 114, Y: 200, Size: textSize},
		},
		Sign: SignaturePlacement{TargetWidth: 150, X: 135, Y: 100},
	}
}

func april02() *Layout {
	return &Layout{
		ID:       IDApril02,
		Title:    "Attestation de déplacement dérogatoire (2 avril 2020)",
		Template: "attestation-2020-04-02.pdf",
		Fields: []TextPlacement{
			{Fields: []Field{FieldName}, X: 123, Y: 686, Size: textSize},
			{Fields: []Field{FieldBirthDay}, X: 123, Y: 661, Size: textSize},
			{Fields: []Field{FieldBirthTown}, X: 92, Y: 638, Size: textSize},
			{Fields: []Field{FieldAddress}, X: 134, Y: 613, Size: textSize},
			{Fields: []Field{FieldPostalCode}, X: 134, Y: 598, Size: textSize},
			{Fields: []Field{FieldTown}, X: 134, Y: 583, Size: textSize},
			{Fields: []Field{FieldTown}, X: 111, Y: 226, Size: textSize},
		},
		Purposes: append([]Purpose(nil), Purposes...),
		Marks: map[Purpose]Point{
			PurposePro:             {X: 76, Y: 527},
			PurposeGrocery:         {X: 76, Y: 478},
			PurposeHealth:          {X: 76, Y: 436},
			PurposeFamily:          {X: 76, Y: 400},
			PurposeSport:           {X: 76, Y: 345},
			PurposeJudicial:        {X: 76, Y: 298},
			PurposeGeneralInterest: {X: 76, Y: 260},
		},
		Glyph:    "x",
		MarkSize: 19,
		Clock: []ClockPlacement{
			{Format: "02/01/2006", X: 92, Y: 200, Size: textSize},
			{Format: "15h04", X: 200, Y: 201, Size: textSize},
		},
		Sign: SignaturePlacement{TargetWidth: 100, X: 340, Y: 150},
	}
}
