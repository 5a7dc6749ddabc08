package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"regexp"
	"time"

	"git.arvados.org/arvados.git/sdk/go/arvados"
	"git.arvados.org/arvados.git/sdk/go/arvadosclient"
	"git.arvados.org/arvados.git/sdk/go/keepclient"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

const runtimeImage = "genomelocator-runtime"

// arvadosContainerRunner runs this program, with the given Args, in
// an arvados container, and waits for it to finish.
type arvadosContainerRunner struct {
	Client      *arvados.Client
	Name        string
	ProjectUUID string
	VCPUs       int
	RAM         int64
	Priority    int
	Args        []string
	Mounts      map[string]string // collection uuid or pdh => mount point
}

var (
	collectionInPathRe    = regexp.MustCompile(`^(.*/)?([0-9a-f]{32}\+[0-9]+|[0-9a-z]{5}-[0-9a-z]{5}-[0-9a-z]{15})(/.*)?$`)
	containerPollInterval = 10 * time.Second
)

// outputCapacity is the scratch space, in bytes, of a container's
// output directory.
const outputCapacity = 100000000000

// Run submits a container request and returns the UUID of its output
// collection once the container has completed successfully.
func (runner *arvadosContainerRunner) Run() (string, error) {
	if runner.ProjectUUID == "" {
		return "", errors.New("cannot run arvados container: ProjectUUID not provided")
	}
	prog := "/mnt/cmd/genomelocator"
	cmdUUID, err := runner.makeCommandCollection()
	if err != nil {
		return "", err
	}
	command := append([]string{prog}, runner.Args...)
	mounts := runner.containerMounts(cmdUUID)
	rc := arvados.RuntimeConstraints{
		VCPUs:        runner.VCPUs,
		RAM:          runner.RAM,
		KeepCacheRAM: (1 << 26) * 2 * int64(runner.VCPUs),
	}
	var cr arvados.ContainerRequest
	err = runner.Client.RequestAndDecode(&cr, "POST", "arvados/v1/container_requests", nil, map[string]interface{}{
		"container_request": map[string]interface{}{
			"owner_uuid":          runner.ProjectUUID,
			"name":                runner.Name,
			"container_image":     runtimeImage,
			"command":             command,
			"mounts":              mounts,
			"use_existing":        true,
			"output_path":         "/mnt/output",
			"runtime_constraints": rc,
			"priority":            runner.Priority,
			"state":               arvados.ContainerRequestStateCommitted,
		},
	})
	if err != nil {
		return "", err
	}
	log.Printf("container request UUID: %s", cr.UUID)

	lastState := cr.State
	ticker := time.NewTicker(containerPollInterval)
	defer ticker.Stop()
	for cr.State != arvados.ContainerRequestStateFinal {
		<-ticker.C
		err = runner.Client.RequestAndDecode(&cr, "GET", "arvados/v1/container_requests/"+cr.UUID, nil, nil)
		if err != nil {
			return "", err
		}
		if cr.State != lastState {
			log.Printf("container request state: %s", cr.State)
			lastState = cr.State
		}
	}

	var ctr arvados.Container
	err = runner.Client.RequestAndDecode(&ctr, "GET", "arvados/v1/containers/"+cr.ContainerUUID, nil, nil)
	if err != nil {
		return "", err
	}
	if ctr.State != arvados.ContainerStateComplete || ctr.ExitCode != 0 {
		return "", errors.Errorf("container %s failed: state %s, exit code %d (log collection %s)", ctr.UUID, ctr.State, ctr.ExitCode, cr.LogUUID)
	}
	return cr.OutputUUID, nil
}

// containerMounts returns the mounts of a container running the
// program stored in collection cmdUUID.
func (runner *arvadosContainerRunner) containerMounts(cmdUUID string) map[string]map[string]interface{} {
	mounts := map[string]map[string]interface{}{
		"/mnt/cmd":    {"kind": "collection", "uuid": cmdUUID},
		"/mnt/output": {"kind": "tmp", "writable": true, "capacity": outputCapacity},
	}
	for uuid, mnt := range runner.Mounts {
		mounts[mnt] = map[string]interface{}{"kind": "collection", "uuid": uuid}
	}
	return mounts
}

// TranslatePaths rewrites each non-empty path, which must refer to a
// file in a collection (e.g. "/keep/by_id/<pdh>/hg38.2bit"), to the
// same file's path inside the container, and adds the collection to
// runner.Mounts.
func (runner *arvadosContainerRunner) TranslatePaths(paths ...*string) error {
	for _, path := range paths {
		if *path == "" {
			continue
		}
		translated, err := runner.mountPath(*path)
		if err != nil {
			return err
		}
		*path = translated
	}
	return nil
}

func (runner *arvadosContainerRunner) mountPath(path string) (string, error) {
	m := collectionInPathRe.FindStringSubmatch(path)
	if m == nil {
		return "", errors.Errorf("%q is not a path in a collection", path)
	}
	id, rest := m[2], m[3]
	if runner.Mounts == nil {
		runner.Mounts = map[string]string{}
	}
	mnt, ok := runner.Mounts[id]
	if !ok {
		mnt = "/mnt/" + id
		runner.Mounts[id] = mnt
	}
	return mnt + rest, nil
}

// commandCollectionName identifies a build of this program, so a
// project holds one collection per distinct binary.
func commandCollectionName(exe []byte) string {
	return fmt.Sprintf("genomelocator-%x", blake2b.Sum256(exe))
}

// makeCommandCollection returns the UUID of a collection in the
// project holding the running binary, uploading it if needed.
func (runner *arvadosContainerRunner) makeCommandCollection() (string, error) {
	exe, err := ioutil.ReadFile("/proc/self/exe")
	if err != nil {
		return "", err
	}
	name := commandCollectionName(exe)
	uuid, err := runner.findCollection(name)
	if err != nil {
		return "", err
	} else if uuid != "" {
		log.Infof("using existing binary collection %s (%s)", uuid, name)
		return uuid, nil
	}
	log.Infof("uploading binary to new collection %s", name)
	return runner.uploadCollection(name, "genomelocator", exe)
}

// findCollection returns the UUID of a collection in the project with
// the given name, or "" if there is none.
func (runner *arvadosContainerRunner) findCollection(name string) (string, error) {
	var found arvados.CollectionList
	err := runner.Client.RequestAndDecode(&found, "GET", "arvados/v1/collections", nil, arvados.ListOptions{
		Limit: 1,
		Count: "none",
		Filters: []arvados.Filter{
			{Attr: "name", Operator: "=", Operand: name},
			{Attr: "owner_uuid", Operator: "=", Operand: runner.ProjectUUID},
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "list collections")
	}
	if len(found.Items) == 0 {
		return "", nil
	}
	return found.Items[0].UUID, nil
}

// uploadCollection stores data as an executable file in a new
// collection and returns the collection's UUID.
func (runner *arvadosContainerRunner) uploadCollection(name, filename string, data []byte) (string, error) {
	ac, err := arvadosclient.New(runner.Client)
	if err != nil {
		return "", err
	}
	var coll arvados.Collection
	fs, err := coll.FileSystem(runner.Client, keepclient.New(ac))
	if err != nil {
		return "", err
	}
	f, err := fs.OpenFile(filename, os.O_CREATE|os.O_WRONLY, 0777)
	if err != nil {
		return "", err
	}
	if _, err = f.Write(data); err != nil {
		f.Close()
		return "", errors.Wrapf(err, "write %s", filename)
	}
	if err = f.Close(); err != nil {
		return "", err
	}
	manifest, err := fs.MarshalManifest(".")
	if err != nil {
		return "", err
	}
	err = runner.Client.RequestAndDecode(&coll, "POST", "arvados/v1/collections", nil, map[string]interface{}{
		"collection": map[string]interface{}{
			"owner_uuid":    runner.ProjectUUID,
			"manifest_text": manifest,
			"name":          name,
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "create collection")
	}
	log.Infof("collection %s", coll.UUID)
	return coll.UUID, nil
}
