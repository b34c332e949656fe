package core

// ioctl command number layout (asm-generic/ioctl.h)
const (
	IOC_NRBITS   = 8
	IOC_TYPEBITS = 8
	IOC_SIZEBITS = 14
	IOC_DIRBITS  = 2

	IOC_NRSHIFT   = 0
	IOC_TYPESHIFT = IOC_NRSHIFT + IOC_NRBITS
	IOC_SIZESHIFT = IOC_TYPESHIFT + IOC_TYPEBITS
	IOC_DIRSHIFT  = IOC_SIZESHIFT + IOC_SIZEBITS

	IOC_NONE  = 0
	IOC_WRITE = 1
	IOC_READ  = 2
)

// IOC builds an ioctl command number
func IOC(dir, typ, nr, size uint32) uint32 {
	return dir<<IOC_DIRSHIFT | typ<<IOC_TYPESHIFT | nr<<IOC_NRSHIFT | size<<IOC_SIZESHIFT
}

// IOCType extracts the magic (type) field
func IOCType(cmd uint32) uint32 {
	return (cmd >> IOC_TYPESHIFT) & (1<<IOC_TYPEBITS - 1)
}

// IOCNr extracts the command index
func IOCNr(cmd uint32) uint32 {
	return (cmd >> IOC_NRSHIFT) & (1<<IOC_NRBITS - 1)
}

// Timer device control requests
const (
	IOC_MYTIMER_MAGIC = 't'

	// Arm the caller with SIGUSR1
	IOCTL_MYTIMER_SET = IOC_NONE<<IOC_DIRSHIFT | IOC_MYTIMER_MAGIC<<IOC_TYPESHIFT | 1

	// Arm the caller with the signal passed as argument. Only accepted when
	// the driver is configured with CallerSignal.
	IOCTL_MYTIMER_SETSIG = IOC_WRITE<<IOC_DIRSHIFT | 4<<IOC_SIZESHIFT | IOC_MYTIMER_MAGIC<<IOC_TYPESHIFT | 2

	IOCTL_MYTIMER_MAX    = 1
	IOCTL_MYTIMER_MAXSIG = 2
)
