// Command i2cmonitor is a host-side diagnostic tool for a Bus running on
// the far end of a UART: it pulls trace-ring dumps, issues ad-hoc
// Transfers, and prints error classification, speaking this driver's own
// link protocol (package link) over the diagnostic serial port.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/tarm/serial"

	"github.com/amken3d/i2cmaster/cmd/i2cmonitor/link"
	"github.com/amken3d/i2cmaster/protocol"
)

var (
	device = flag.String("device", "/dev/ttyUSB0", "Diagnostic UART device path")
	baud   = flag.Int("baud", 115200, "Baud rate")
)

func main() {
	flag.Parse()

	fmt.Println("i2cmonitor - I2C driver diagnostic console")
	fmt.Println("============================================")

	port, err := serial.OpenPort(&serial.Config{
		Name:        *device,
		Baud:        *baud,
		ReadTimeout: 2 * time.Second,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open %s: %v\n", *device, err)
		os.Exit(1)
	}
	defer port.Close()

	sess := &session{port: port, reader: link.NewFrameReader(port)}

	fmt.Println("Connected. Type 'help' for commands, 'quit' to exit.")
	repl(sess)
}

type session struct {
	port   *serial.Port
	reader *link.FrameReader
}

// roundTrip sends a request frame and waits for the matching response,
// the single-outstanding-request simplification link.FrameReader assumes.
func (s *session) roundTrip(op link.Opcode, body []byte) (link.Opcode, []byte, error) {
	if _, err := s.port.Write(link.EncodeFrame(op, body)); err != nil {
		return 0, nil, fmt.Errorf("write request: %w", err)
	}
	frame, err := s.reader.ReadFrame()
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return link.DecodeFrame(frame)
}

func repl(s *session) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		args, err := shlex.Split(line)
		if err != nil || len(args) == 0 {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		switch args[0] {
		case "quit", "exit", "q":
			return
		case "help", "?":
			printHelp()
		case "dump-trace":
			cmdDumpTrace(s)
		case "set-freq":
			cmdSetFrequency(s, args[1:])
		case "read":
			cmdRead(s, args[1:])
		case "write":
			cmdWrite(s, args[1:])
		case "reset":
			cmdReset(s)
		default:
			fmt.Printf("unknown command: %s\n", args[0])
		}
	}
}

func printHelp() {
	fmt.Println(`
  dump-trace                 print the bus's trace ring
  set-freq <hz>               reprogram the bus frequency
  read <addr> <n>              read n bytes from addr (7-bit, decimal or 0x..)
  write <addr> <byte> [...]    write the given bytes to addr
  reset                       run bus recovery
  quit                        exit`)
}

func cmdDumpTrace(s *session) {
	op, body, err := s.roundTrip(link.OpDumpTrace, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if op == link.OpErrorResponse {
		printErrorResponse(body)
		return
	}
	count, err := protocol.DecodeVLQUint(&body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: malformed trace dump: %v\n", err)
		return
	}
	for i := uint32(0); i < count; i++ {
		line, err := protocol.DecodeVLQString(&body)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: truncated trace dump: %v\n", err)
			return
		}
		fmt.Println(line)
	}
}

func cmdSetFrequency(s *session, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: set-freq <hz>")
		return
	}
	hz, err := parseUint(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	body := link.NewBody()
	protocol.EncodeVLQUint(body, hz)
	op, resp, err := s.roundTrip(link.OpSetFrequency, body.Result())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if op == link.OpErrorResponse {
		printErrorResponse(resp)
		return
	}
	clamped, _ := protocol.DecodeVLQUint(&resp)
	fmt.Printf("frequency set to %d Hz\n", clamped)
}

func cmdRead(s *session, args []string) {
	if len(args) != 2 {
		fmt.Println("usage: read <addr> <n>")
		return
	}
	addr, err := parseUint(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	n, err := parseUint(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}

	body := link.NewBody()
	protocol.EncodeVLQUint(body, addr)
	protocol.EncodeVLQUint(body, 1) // FlagRead
	protocol.EncodeVLQUint(body, n)
	op, resp, err := s.roundTrip(link.OpTransfer, body.Result())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if op == link.OpErrorResponse {
		printErrorResponse(resp)
		return
	}
	status, err := protocol.DecodeVLQUint(&resp)
	if err != nil || status != 0 {
		fmt.Printf("transfer failed, status=%#x\n", status)
		return
	}
	fmt.Printf("read %d bytes: % x\n", len(resp), resp)
}

func cmdWrite(s *session, args []string) {
	if len(args) < 2 {
		fmt.Println("usage: write <addr> <byte> [byte...]")
		return
	}
	addr, err := parseUint(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	data := make([]byte, 0, len(args)-1)
	for _, a := range args[1:] {
		v, err := parseUint(a)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return
		}
		data = append(data, byte(v))
	}

	body := link.NewBody()
	protocol.EncodeVLQUint(body, addr)
	protocol.EncodeVLQUint(body, 0) // write, no flags
	protocol.EncodeVLQBytes(body, data)
	op, resp, err := s.roundTrip(link.OpTransfer, body.Result())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if op == link.OpErrorResponse {
		printErrorResponse(resp)
		return
	}
	status, _ := protocol.DecodeVLQUint(&resp)
	if status != 0 {
		fmt.Printf("transfer failed, status=%#x\n", status)
		return
	}
	fmt.Println("ok")
}

func cmdReset(s *session) {
	op, resp, err := s.roundTrip(link.OpReset, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if op == link.OpErrorResponse {
		printErrorResponse(resp)
		return
	}
	status, _ := protocol.DecodeVLQUint(&resp)
	if status != 0 {
		fmt.Printf("recovery reported status=%#x\n", status)
		return
	}
	fmt.Println("bus recovered")
}

func printErrorResponse(body []byte) {
	kind, _ := protocol.DecodeVLQUint(&body)
	status, _ := protocol.DecodeVLQUint(&body)
	fmt.Printf("error: kind=%d status=%#x\n", kind, status)
}

func parseUint(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return uint32(v), nil
}
