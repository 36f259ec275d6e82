// Package serial opens and configures Linux serial devices for raw byte transfer.
//
// It covers exactly what a byte bridge needs: baud rate, data bits, parity and
// stop bits, raw termios mode, exclusive ownership of the device, and bounded
// reads so a caller can notice shutdown or an unplugged device.
//
// # Basic Usage
//
// Open a serial port with the default configuration (115200 8N1):
//
//	port, err := serial.Open("/dev/ttyUSB0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	n, err := port.Write([]byte("AT\r\n"))
//	buffer := make([]byte, 256)
//	n, err = port.Read(buffer) // n == 0 after ReadTimeout without data
//
// # Configuration Options
//
//	port, err := serial.Open("/dev/ttyUSB0",
//	    serial.WithBaudRate(9600),
//	    serial.WithDataBits(7),
//	    serial.WithParity(serial.ParityEven),
//	    serial.WithStopBits(2),
//	)
//
// # Port Discovery
//
//	ports, err := serial.ListPortDetails(false) // USB-backed ports only
//	path, err := serial.SelectPort("", candidates)
//
// # Error Handling
//
// Open and SelectPort return *OpenError. Its Kind tells NotFound, Busy,
// Permission, Misconfigured and MultipleCandidates apart, and errors.Is
// matches it against ErrDeviceNotFound, ErrDeviceInUse, ErrPermissionDenied,
// ErrInvalidConfig and ErrMultipleCandidates.
//
// # Default Configuration
//
//   - BaudRate: 115200
//   - DataBits: 8
//   - StopBits: 1
//   - Parity: None
//   - ReadTimeout: 200ms
//   - Exclusive: true
package serial
