package cloudinit

import (
	"bytes"
	"fmt"

	"github.com/kdomanski/iso9660"
)

// ISOVolumeID is the volume identifier required by the NoCloud datasource.
const ISOVolumeID = "CIDATA"

// BuildISO packages the two rendered documents into an ISO9660 image.
// The ISO contains exactly user-data and meta-data at the root; its volume
// identifier must be CIDATA for cloud-init to pick it up.
//
// Returns the ISO image as a byte slice ready to be written next to the VM
// disk.
func BuildISO(r Rendered) ([]byte, error) {
	if r.UserData == "" || r.MetaData == "" {
		return nil, fmt.Errorf("both user-data and meta-data are required")
	}

	writer, err := iso9660.NewWriter()
	if err != nil {
		return nil, fmt.Errorf("failed to create ISO writer: %w", err)
	}
	defer func() {
		// Scratch files only; the image is already assembled by then.
		_ = writer.Cleanup()
	}()

	if err := writer.AddFile(bytes.NewReader([]byte(r.UserData)), "user-data"); err != nil {
		return nil, fmt.Errorf("failed to add user-data: %w", err)
	}
	if err := writer.AddFile(bytes.NewReader([]byte(r.MetaData)), "meta-data"); err != nil {
		return nil, fmt.Errorf("failed to add meta-data: %w", err)
	}

	var buf bytes.Buffer
	if err := writer.WriteTo(&buf, ISOVolumeID); err != nil {
		return nil, fmt.Errorf("failed to write ISO image: %w", err)
	}

	return buf.Bytes(), nil
}
