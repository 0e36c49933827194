// Package vm provides high-level VM lifecycle management operations.
//
// This package orchestrates the lower-level components (config, image,
// cloudinit, disk, libvirt) into the operations the CLI exposes:
//
//   - CreateBatch: provision N VMs per spec, with an all-or-nothing base
//     image gate up front and per-VM failure isolation after it
//   - Start / Shutdown / Destroy: lifecycle transitions for single VMs
//   - List / Status: enumerate conductor-managed domains and their state
//   - WaitReady: poll until every VM has an IPv4 address
//
// Error Handling:
//
// Provisioning uses best-effort cleanup on failure: a VM that fails partway
// has its domain undefined and its files removed so the next create run
// starts clean. Within a batch, one VM's failure never aborts the rest.
//
// Context Support:
//
// All operations accept a context.Context. Long-running loops (graceful
// shutdown wait, readiness polling) check it between iterations.
package vm
