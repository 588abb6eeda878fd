//go:build opencl

package device

/*
#ifdef __APPLE__
#include <OpenCL/opencl.h>
#else
#include <CL/cl.h>
#endif
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	"splax/internal/status"
)

// CompileCL submits assembled kernel source to the real OpenCL compiler
// and returns one Kernel closure per requested entry point name,
// fulfilling the program builder's CompileFunc contract for the GPU
// backend (spec.md §4.1 "submits to the compute runtime").
//
// Each returned Kernel expects to be called with a device-resident
// Buffer per kernel argument followed by a trailing int global work
// size; it sets kernel args via clSetKernelArg and enqueues an
// NDRangeKernel on q.
func CompileCL(q *CLQueue, source string, entries []string) (map[string]func(args ...interface{}) error, error) {
	csrc := C.CString(source)
	defer C.free(unsafe.Pointer(csrc))

	var errCode C.cl_int
	program := C.clCreateProgramWithSource(q.context, 1, &csrc, nil, &errCode)
	if errCode != C.CL_SUCCESS {
		return nil, status.New(status.CompilationError, "", "clCreateProgramWithSource failed: %d", int(errCode))
	}

	buildErr := C.clBuildProgram(program, 1, &q.device, nil, nil, nil)
	if buildErr != C.CL_SUCCESS {
		var logSize C.size_t
		C.clGetProgramBuildInfo(program, q.device, C.CL_PROGRAM_BUILD_LOG, 0, nil, &logSize)
		logBuf := make([]byte, logSize)
		if logSize > 0 {
			C.clGetProgramBuildInfo(program, q.device, C.CL_PROGRAM_BUILD_LOG,
				logSize, unsafe.Pointer(&logBuf[0]), nil)
		}
		return nil, status.New(status.CompilationError, "", "compile-failed: %s", string(logBuf))
	}

	out := make(map[string]func(args ...interface{}) error, len(entries))
	for _, name := range entries {
		cname := C.CString(name)
		kernel := C.clCreateKernel(program, cname, &errCode)
		C.free(unsafe.Pointer(cname))
		if errCode != C.CL_SUCCESS {
			return nil, status.New(status.CompilationError, "", "clCreateKernel(%s) failed: %d", name, int(errCode))
		}
		out[name] = makeCLEntryPoint(q, kernel)
	}
	return out, nil
}

func makeCLEntryPoint(q *CLQueue, kernel C.cl_kernel) func(args ...interface{}) error {
	return func(args ...interface{}) error {
		if len(args) == 0 {
			return status.New(status.InvalidArgument, "", "kernel call requires a trailing global work size")
		}
		bufArgs := args[:len(args)-1]
		globalSize, ok := args[len(args)-1].(int)
		if !ok {
			return status.New(status.InvalidArgument, "", "trailing kernel argument must be an int global work size")
		}

		for i, a := range bufArgs {
			buf, ok := a.(*clBuffer)
			if !ok {
				return status.New(status.InvalidArgument, "", "kernel argument %d is not a device buffer", i)
			}
			if C.clSetKernelArg(kernel, C.cl_uint(i), C.size_t(unsafe.Sizeof(buf.mem)), unsafe.Pointer(&buf.mem)) != C.CL_SUCCESS {
				return status.New(status.Error, "", "clSetKernelArg(%d) failed", i)
			}
		}

		global := C.size_t(globalSize)
		return q.Enqueue(func() error {
			if C.clEnqueueNDRangeKernel(q.queue, kernel, 1, nil, &global, nil, 0, nil, nil) != C.CL_SUCCESS {
				return status.New(status.Error, "", "clEnqueueNDRangeKernel failed")
			}
			return nil
		})
	}
}
