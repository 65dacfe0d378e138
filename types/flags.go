package types

// Flags is a bitset over an attribute's access-control and export behavior.
type Flags uint8

const (
	// FlagNormal is the zero value: readable and writable, exported, not
	// notify-only.
	FlagNormal Flags = 0
	// FlagReadOnly forbids client writes; the tree's updater path uses a
	// privileged override that bypasses this check.
	FlagReadOnly Flags = 1 << (iota - 1)
	// FlagNotifyOnly is valid only on bool attributes whose default is
	// false: writes never change the stored value, they only fire
	// listeners (button semantics).
	FlagNotifyOnly
	// FlagNoExport excludes the attribute from XML snapshots.
	FlagNoExport
	// FlagImported marks attributes materialized from XML import with a
	// maximal range, rather than declared in code.
	FlagImported
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

func (f Flags) ReadOnly() bool   { return f.Has(FlagReadOnly) }
func (f Flags) NotifyOnly() bool { return f.Has(FlagNotifyOnly) }
func (f Flags) NoExport() bool   { return f.Has(FlagNoExport) }
func (f Flags) Imported() bool   { return f.Has(FlagImported) }

// ValidateNotifyOnly enforces "NotifyOnly ⇒ type=bool ∧ default=false". It
// returns false if flags claims NotifyOnly for an attribute that does not
// meet that precondition.
func ValidateNotifyOnly(flags Flags, t Type, def Value) bool {
	if !flags.Has(FlagNotifyOnly) {
		return true
	}
	return t == TypeBool && !def.Bool()
}
