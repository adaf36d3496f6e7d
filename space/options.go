package space

import "os"

// Options configures a Space. The zero value of every field selects its
// default, so Options{} is usable as-is.
type Options struct {
	// TableCapacity is the region table slot count.
	// Defaults to DefaultTableCapacity.
	TableCapacity int

	// PageSize is the mapping granularity. Attach sizes round up to it;
	// fixed addresses and backing offsets must be multiples of it.
	// Defaults to the host page size.
	PageSize int
}

// DefaultOptions returns the options NewRoot and NewNested substitute for
// zero fields.
func DefaultOptions() Options {
	return Options{
		TableCapacity: DefaultTableCapacity,
		PageSize:      os.Getpagesize(),
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.TableCapacity <= 0 {
		o.TableCapacity = def.TableCapacity
	}
	if o.PageSize <= 0 {
		o.PageSize = def.PageSize
	}
	return o
}
