package sessions

import (
	"encoding/base64"
	"sync"

	"github.com/pkg/errors"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/zapconecta/session-server/internal/obs"
)

// QRStore holds each matricula's latest handshake artifact, a PNG data URL,
// while its session is waiting to be scanned. Entries are ephemeral: a repeat
// QR event overwrites (latest wins) and authentication or teardown removes
// the entry outright.
type QRStore struct {
	lock  sync.RWMutex
	codes map[string]string
}

func NewQRStore() *QRStore {
	return &QRStore{codes: make(map[string]string)}
}

func (qs *QRStore) Put(matricula, dataURL string) {
	qs.lock.Lock()
	defer qs.lock.Unlock()
	qs.codes[matricula] = dataURL
	obs.QRIssued()
}

func (qs *QRStore) Get(matricula string) (string, bool) {
	qs.lock.RLock()
	defer qs.lock.RUnlock()
	dataURL, ok := qs.codes[matricula]
	return dataURL, ok
}

func (qs *QRStore) Delete(matricula string) {
	qs.lock.Lock()
	defer qs.lock.Unlock()
	delete(qs.codes, matricula)
}

// qrDataURL renders the raw handshake payload as a browser-displayable
// data:image/png URL.
func qrDataURL(code string) (string, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		return "", errors.Wrap(err, "[qrDataURL] encoding QR image")
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
