package savedvars

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/latoulicious/rpsync/pkg/cloud"
	"github.com/latoulicious/rpsync/pkg/conflict"
	"github.com/latoulicious/rpsync/pkg/profile"
)

const (
	// ProfilesGlobal is the table that holds every profile keyed by id
	ProfilesGlobal = "TRP3_Profiles"

	// BackupSuffix is appended to the file name of the copy made before a write
	BackupSuffix = ".rpsync_backup"
)

// LocalProfile is one profile found in a SavedVariables file
type LocalProfile struct {
	Data       cloud.ProfileData
	Profile    profile.Profile
	Icon       string
	Path       string
	ModifiedAt time.Time
}

// Side returns the local half of a conflict comparison
func (p LocalProfile) Side() conflict.Side {
	return conflict.Side{Checksum: p.Data.Checksum, ModifiedAt: p.ModifiedAt}
}

// ScanFile lists the profiles stored in the SavedVariables file at path,
// sorted by id. ModifiedAt is the file's modification time, shared by all
// profiles of the file
func ScanFile(path, accountID string) ([]LocalProfile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat saved variables: %w", err)
	}

	globals, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	profiles, err := Global(globals, ProfilesGlobal)
	if err != nil {
		return nil, err
	}

	out := make([]LocalProfile, 0, len(profiles))
	for _, id := range sortedKeys(profiles) {
		raw, ok := profiles[id].(map[string]any)
		if !ok {
			continue
		}

		lp, err := newLocalProfile(id, accountID, profile.Raw(raw))
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", id, err)
		}
		lp.Path = path
		lp.ModifiedAt = info.ModTime().UTC()
		out = append(out, lp)
	}
	return out, nil
}

// FindProfile scans path and returns the profile with the given id
func FindProfile(path, accountID, id string) (*LocalProfile, error) {
	profiles, err := ScanFile(path, accountID)
	if err != nil {
		return nil, err
	}
	for i := range profiles {
		if profiles[i].Data.ID == id {
			return &profiles[i], nil
		}
	}
	return nil, fmt.Errorf("profile %s: %w", id, cloud.ErrNotFound)
}

func newLocalProfile(id, accountID string, raw profile.Raw) (LocalProfile, error) {
	payload, err := profile.CanonicalJSON(raw)
	if err != nil {
		return LocalProfile{}, err
	}
	checksum, err := profile.Checksum(raw)
	if err != nil {
		return LocalProfile{}, err
	}

	p := profile.MapProfile(raw, id)
	var icon string
	if p.Characteristics.Icon != nil {
		icon = *p.Characteristics.Icon
	}

	return LocalProfile{
		Data: cloud.ProfileData{
			ID:          id,
			AccountID:   accountID,
			ProfileName: p.ProfileName,
			RawLua:      string(payload),
			Checksum:    checksum,
		},
		Profile: p,
		Icon:    icon,
	}, nil
}

// ParseRecord decodes the JSON payload stored in ProfileData.RawLua
func ParseRecord(payload string) (profile.Raw, error) {
	var raw profile.Raw
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse profile payload: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("profile payload is not an object: %w", cloud.ErrInvalidProfile)
	}
	return raw, nil
}

// WriteProfiles stores several records in one write. The previous file is
// copied to path+BackupSuffix first, and the new content replaces it
// atomically
func WriteProfiles(path string, records map[string]profile.Raw) error {
	globals, err := DecodeFile(path)
	if err != nil {
		return err
	}

	profiles, err := Global(globals, ProfilesGlobal)
	if err != nil {
		return err
	}
	for id, raw := range records {
		profiles[id] = map[string]any(raw)
	}
	globals[ProfilesGlobal] = profiles

	content, err := Encode(globals)
	if err != nil {
		return err
	}

	if err := backup(path); err != nil {
		return err
	}
	return replaceFile(path, content)
}

func backup(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(path + BackupSuffix)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("backup failed: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	return nil
}

func replaceFile(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}
