package lustre

import (
	"fmt"
)

// Service is a single logical mountable unit: a metadata target, an object
// target or a management target, identified by its canonical name.
type Service struct {
	// Name is "{fsname}-MDT{index:04x}" or "{fsname}-OST{index:04x}" for
	// filesystem targets, or the configured mgs_id for a management target.
	Name string
}

// ServiceInstance is one physical placement of a service on a host. A
// service with failover peers has one instance per candidate host.
type ServiceInstance struct {
	Hostname   string `toml:"hostname"`
	Device     string `toml:"device"`
	Nid        string `toml:"nid"`
	Mountpoint string `toml:"mnt"`

	Service *Service `toml:"-"`
}

// Mdt is a metadata target of a filesystem.
type Mdt struct {
	Index     int               `toml:"index"`
	Instances []ServiceInstance `toml:"instances"`

	Service Service `toml:"-"`
}

// Ost is an object storage target of a filesystem.
type Ost struct {
	Index     int               `toml:"index"`
	Instances []ServiceInstance `toml:"instances"`

	Service Service `toml:"-"`
}

// Mgs is a management service shared by one or more filesystems.
type Mgs struct {
	ID        string            `toml:"mgs_id"`
	Instances []ServiceInstance `toml:"instances"`

	Service Service `toml:"-"`
}

// FileSystem is one Lustre filesystem with its targets.
type FileSystem struct {
	Fsname string `toml:"fsname"`
	Mdts   []Mdt  `toml:"mdts"`
	Osts   []Ost  `toml:"osts"`
}

// SSHHost is a storage host in the cluster. A standalone host participates
// only on itself and is excluded from the shared monitor ring.
type SSHHost struct {
	Hostname   string `toml:"hostname"`
	Standalone bool   `toml:"standalone"`
}

// Topology is the cluster configuration produced by the management command.
// It is immutable after loading; all readers share the same instance.
type Topology struct {
	Filesystems []FileSystem `toml:"filesystems"`
	MgsList     []Mgs        `toml:"mgs_list"`
	Hosts       []SSHHost    `toml:"hosts"`
}

// MDTName returns the canonical service name of a metadata target.
func MDTName(fsname string, index int) (string, error) {
	if index < 0 || index > 0xffff {
		return "", fmt.Errorf("invalid MDT index number: %d", index)
	}
	return fmt.Sprintf("%s-MDT%04x", fsname, index), nil
}

// OSTName returns the canonical service name of an object storage target.
func OSTName(fsname string, index int) (string, error) {
	if index < 0 || index > 0xffff {
		return "", fmt.Errorf("invalid OST index number: %d", index)
	}
	return fmt.Sprintf("%s-OST%04x", fsname, index), nil
}

// ResolveServices fills in the Service of every target and links each
// instance back to it. Out-of-range target indexes reject the topology.
func (t *Topology) ResolveServices() error {
	for fi := range t.Filesystems {
		fs := &t.Filesystems[fi]

		for i := range fs.Osts {
			ost := &fs.Osts[i]
			name, err := OSTName(fs.Fsname, ost.Index)
			if err != nil {
				return err
			}
			ost.Service.Name = name
			for j := range ost.Instances {
				ost.Instances[j].Service = &ost.Service
			}
		}

		for i := range fs.Mdts {
			mdt := &fs.Mdts[i]
			name, err := MDTName(fs.Fsname, mdt.Index)
			if err != nil {
				return err
			}
			mdt.Service.Name = name
			for j := range mdt.Instances {
				mdt.Instances[j].Service = &mdt.Service
			}
		}
	}

	for i := range t.MgsList {
		mgs := &t.MgsList[i]
		mgs.Service.Name = mgs.ID
		for j := range mgs.Instances {
			mgs.Instances[j].Service = &mgs.Service
		}
	}

	return nil
}

// LocalInstances returns every service instance placed on the given host,
// across all filesystems and management services.
func (t *Topology) LocalInstances(hostname string) []ServiceInstance {
	var instances []ServiceInstance

	for _, fs := range t.Filesystems {
		for _, ost := range fs.Osts {
			for _, inst := range ost.Instances {
				if inst.Hostname == hostname {
					instances = append(instances, inst)
				}
			}
		}

		for _, mdt := range fs.Mdts {
			for _, inst := range mdt.Instances {
				if inst.Hostname == hostname {
					instances = append(instances, inst)
				}
			}
		}
	}

	for _, mgs := range t.MgsList {
		for _, inst := range mgs.Instances {
			if inst.Hostname == hostname {
				instances = append(instances, inst)
			}
		}
	}

	return instances
}
