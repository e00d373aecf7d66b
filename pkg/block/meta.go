package block

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/syldej/gluster-block/internal/glog"
	"github.com/syldej/gluster-block/pkg/volume"
)

// Header key tokens of the metadata-log grammar. Any other key is an addr.
const (
	keyVolume      = "VOLUME"
	keyGbid        = "GBID"
	keySize        = "SIZE"
	keyHA          = "HA"
	keyEntryCreate = "ENTRYCREATE"
)

// Open reads and parses the metadata log for blockName on volume v. The
// error satisfies IsNotFound when no log exists.
func Open(v *volume.Handle, blockName string) (*MetaInfo, error) {
	data, err := v.ReadMeta(blockName)
	if err != nil {
		return nil, err
	}
	return Parse(blockName, data), nil
}

// Parse parses the newline-delimited metadata-log grammar into a MetaInfo.
// A later "<addr>: <STATUS>" line supersedes an earlier one for the same
// addr, but the addr's position in Hosts is fixed at first occurrence. A
// non-header KEY whose VALUE isn't one of the six known statuses is dropped
// with a warning rather than aborting the parse.
func Parse(blockName string, data []byte) *MetaInfo {
	m := &MetaInfo{BlockName: blockName}
	index := make(map[string]int) // addr -> position in m.Hosts

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			glog.Warningf("metadata log %s: dropping malformed line %q", blockName, line)
			continue
		}

		switch {
		case key == keyVolume:
			m.Volume = value
		case key == keyGbid:
			m.Gbid = value
		case key == keySize:
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				glog.Warningf("metadata log %s: bad SIZE %q: %v", blockName, value, err)
				continue
			}
			m.Size = n
		case key == keyHA:
			n, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				glog.Warningf("metadata log %s: bad HA %q: %v", blockName, value, err)
				continue
			}
			m.Mpath = uint32(n)
		case key == keyEntryCreate:
			m.EntryCreate = EntryCreateStatus(value)
		default:
			status := MetaStatus(value)
			if !status.valid() {
				glog.Warningf("metadata log %s: dropping unknown status %q for host %q", blockName, value, key)
				continue
			}
			if i, ok := index[key]; ok {
				m.Hosts[i].Status = status
			} else {
				index[key] = len(m.Hosts)
				m.Hosts = append(m.Hosts, HostEntry{Addr: key, Status: status})
			}
		}
	}

	return m
}

// SerializeHeader renders the five header lines written once at block
// creation.
func SerializeHeader(volumeName, gbid string, size uint64, mpath uint32) string {
	return fmt.Sprintf("VOLUME: %s\nGBID: %s\nSIZE: %d\nHA: %d\nENTRYCREATE: %s\n",
		volumeName, gbid, size, mpath, EntryCreateInProgress)
}

// SerializeEntryCreate renders an ENTRYCREATE transition line.
func SerializeEntryCreate(status EntryCreateStatus) string {
	return fmt.Sprintf("%s: %s\n", keyEntryCreate, status)
}

// SerializeHost renders a "<addr>: <status>" line.
func SerializeHost(addr string, status MetaStatus) string {
	return fmt.Sprintf("%s: %s\n", addr, status)
}

// Unlink removes a block's metadata log.
func Unlink(v *volume.Handle, blockName string) error {
	return v.UnlinkMeta(blockName)
}

// List enumerates the block names on volume v.
func List(v *volume.Handle) ([]string, error) {
	return v.ListBlocks()
}

// IsNotFound reports whether err is the "no such metadata log" sentinel
// returned by Open/ReadMeta.
func IsNotFound(err error) bool {
	return os.IsNotExist(err)
}
