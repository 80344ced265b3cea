package market

import (
	"context"
	"encoding/binary"
	"net"
	"time"

	errs "krx-scalper/internal/errors"
)

// ntpEpochOffset is the seconds between the NTP epoch (1900) and the Unix
// epoch (1970).
const ntpEpochOffset = 2208988800

// NTPSyncer obtains a clock offset from an NTP server over one UDP
// exchange. It satisfies clock.Syncer; failures are reported, never fatal.
type NTPSyncer struct {
	Addr    string
	Timeout time.Duration
}

// NewNTPSyncer creates a syncer for the given server address
// (host:port; port 123 if empty).
func NewNTPSyncer(addr string) *NTPSyncer {
	if addr == "" {
		addr = "time.kriss.re.kr:123"
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "123")
	}
	return &NTPSyncer{Addr: addr, Timeout: 3 * time.Second}
}

// Offset performs one request/response exchange and returns the estimated
// local clock offset.
func (s *NTPSyncer) Offset(ctx context.Context) (time.Duration, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", s.Addr)
	if err != nil {
		return 0, errs.Wrap(errs.ErrClockSyncUnavailable, err.Error())
	}
	defer conn.Close()

	deadline := time.Now().Add(s.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return 0, errs.Wrap(errs.ErrClockSyncUnavailable, err.Error())
	}

	// 48-byte client packet: LI=0, VN=4, Mode=3 (client).
	req := make([]byte, 48)
	req[0] = 0x23

	t0 := time.Now()
	putTimestamp(req[40:], t0)

	if _, err := conn.Write(req); err != nil {
		return 0, errs.Wrap(errs.ErrClockSyncUnavailable, err.Error())
	}

	resp := make([]byte, 48)
	if _, err := conn.Read(resp); err != nil {
		return 0, errs.Wrap(errs.ErrClockSyncUnavailable, err.Error())
	}
	t3 := time.Now()

	t1 := readTimestamp(resp[32:]) // server receive
	t2 := readTimestamp(resp[40:]) // server transmit
	if t1.IsZero() || t2.IsZero() {
		return 0, errs.Wrap(errs.ErrClockSyncUnavailable, "invalid server timestamps")
	}

	// Standard NTP offset: ((t1-t0) + (t2-t3)) / 2.
	offset := (t1.Sub(t0) + t2.Sub(t3)) / 2
	return offset, nil
}

func putTimestamp(b []byte, t time.Time) {
	secs := uint64(t.Unix()) + ntpEpochOffset
	frac := uint64(t.Nanosecond()) * (1 << 32) / 1e9
	binary.BigEndian.PutUint32(b[0:], uint32(secs))
	binary.BigEndian.PutUint32(b[4:], uint32(frac))
}

func readTimestamp(b []byte) time.Time {
	secs := binary.BigEndian.Uint32(b[0:])
	frac := binary.BigEndian.Uint32(b[4:])
	if secs == 0 {
		return time.Time{}
	}
	nsec := uint64(frac) * 1e9 >> 32
	return time.Unix(int64(secs)-ntpEpochOffset, int64(nsec))
}
